package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/securebank/securebank/internal/httperr"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"

	maxIdempotencyKeyLength = 255
	idempotencyStoreTimeout = 2 * time.Second
)

var errReplayInFlight = errors.New("idempotent request in flight")

// replay is a completed response kept for a repeated key.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// replayStore keeps replays in Redis under account- and route-scoped keys.
type replayStore struct {
	cache *redis.Client
	ttl   time.Duration
}

func (s replayStore) key(accountID, path, key string) string {
	return idempotencyPrefix + accountID + ":" + path + ":" + key
}

// lookup returns a stored replay, nil when the key is unused, or errReplayInFlight
// while the first request holding the key is still running.
func (s replayStore) lookup(ctx context.Context, key string) (*replay, error) {
	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if string(raw) == inProgressMarker {
		return nil, errReplayInFlight
	}
	var r replay
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s replayStore) reserve(ctx context.Context, key string) (bool, error) {
	return s.cache.SetNX(ctx, key, inProgressMarker, s.ttl).Result()
}

func (s replayStore) save(ctx context.Context, key string, r replay) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s replayStore) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
	defer cancel()
	s.cache.Del(ctx, key)
}

// Idempotency replays the stored response when an unsafe request repeats an
// Idempotency-Key the same account already used. Requests without the header pass
// through. Keys are scoped by the account attached by SessionAuth, so it must run
// after it. Only successful responses are stored.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl}
	duplicate := httperr.New(fiber.StatusConflict, httperr.CodeConflict, "duplicate request currently processing")
	unavailable := httperr.New(fiber.StatusServiceUnavailable, httperr.CodeServiceUnavailable, "idempotency store failure")

	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		raw := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if raw == "" || cache == nil {
			return c.Next()
		}
		if len(raw) > maxIdempotencyKeyLength {
			return httperr.BadRequest("Idempotency-Key is too long")
		}

		accountID, _ := c.Locals(accountIDKey).(string)
		key := store.key(accountID, c.Path(), raw)

		ctx, cancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
		defer cancel()

		prior, err := store.lookup(ctx, key)
		switch {
		case errors.Is(err, errReplayInFlight):
			return duplicate
		case err != nil:
			logger.Error("idempotency lookup failed", slog.String("key", raw), slog.Any("error", err))
			return unavailable
		case prior != nil:
			if prior.ContentType != "" {
				c.Set(fiber.HeaderContentType, prior.ContentType)
			}
			return c.Status(prior.Status).Send(prior.Body)
		}

		reserved, err := store.reserve(ctx, key)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", raw), slog.Any("error", err))
			return unavailable
		}
		if !reserved {
			return duplicate
		}

		if err := c.Next(); err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			store.release(key)
			return err
		}

		done := replay{
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		saveCtx, saveCancel := context.WithTimeout(context.Background(), idempotencyStoreTimeout)
		defer saveCancel()
		if err := store.save(saveCtx, key, done); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", raw), slog.Any("error", err))
			store.release(key)
		}
		return nil
	}
}
