package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// UpdatesChannel is the Redis pub/sub channel shared by all API instances.
const UpdatesChannel = "bank:updates"

// RedisBroker fans notifications out across API instances. Send publishes to Redis;
// Start relays everything published into the local Hub.
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	channel string
	logger  *slog.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, channel: UpdatesChannel, logger: logger}
}

// Send publishes message for every instance to deliver.
func (b *RedisBroker) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Start subscribes to the updates channel and relays messages into the Hub until
// ctx is cancelled. The subscription is active once Start returns without error.
func (b *RedisBroker) Start(ctx context.Context) (<-chan struct{}, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var message Message
				if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
					if b.logger != nil {
						b.logger.Warn("dropping malformed notification", slog.Any("error", err))
					}
					continue
				}
				_ = b.hub.Send(ctx, message)
			}
		}
	}()
	return done, nil
}
