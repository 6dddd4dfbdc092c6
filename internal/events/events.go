// Package events publishes domain events for other services to consume.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Exchange is the topic exchange all bank events are published to.
	Exchange = "bank_events"
	// RoutingTransferCompleted is the routing key for committed transfers.
	RoutingTransferCompleted = "transfer.completed"
)

// TransferCompleted is emitted after a transfer commits.
type TransferCompleted struct {
	TransferID  string          `json:"transferId"`
	SenderID    string          `json:"senderId"`
	RecipientID string          `json:"recipientId"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Publisher delivers domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishTransferCompleted(ctx context.Context, event TransferCompleted) error
	Close() error
}

// NoopPublisher drops events. It is used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishTransferCompleted(_ context.Context, event TransferCompleted) error {
	if p != nil && p.logger != nil {
		p.logger.Debug("event publishing disabled", slog.String("routing_key", RoutingTransferCompleted), slog.String("transfer_id", event.TransferID))
	}
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
