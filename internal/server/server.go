package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/securebank/securebank/internal/config"
	"github.com/securebank/securebank/internal/events"
	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/notification"
	"github.com/securebank/securebank/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	hub    *notification.Hub
	broker *notification.RedisBroker
	logger *slog.Logger

	stopRelay context.CancelFunc
	relayDone <-chan struct{}
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup. With
// Redis available live updates travel through the Redis relay so every instance
// reaches its own stream clients.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, publisher events.Publisher, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           2 * time.Minute,
		ErrorHandler:          httperr.Handler(logger),
		DisableStartupMessage: !cfg.IsDev(),
	})

	hub := notification.NewHub(0)
	var (
		notifier notification.Notifier = hub
		broker   *notification.RedisBroker
	)
	if cache != nil {
		broker = notification.NewRedisBroker(cache, hub, logger)
		notifier = broker
	}

	deps := routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Logger:    logger,
		Metrics:   metrics.New(),
		Hub:       hub,
		Notifier:  notifier,
		Publisher: publisher,
	}
	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, hub: hub, broker: broker, logger: logger}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Start launches background work tied to the server lifetime.
func (s *Server) Start(ctx context.Context) error {
	if s.broker == nil {
		return nil
	}
	relayCtx, cancel := context.WithCancel(ctx)
	done, err := s.broker.Start(relayCtx)
	if err != nil {
		cancel()
		return err
	}
	s.stopRelay = cancel
	s.relayDone = done
	s.logger.Info("live update relay started", slog.String("channel", notification.UpdatesChannel))
	return nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown closes live-update streams, gracefully stops the HTTP server and then the
// relay.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	err := s.app.ShutdownWithContext(ctx)
	if s.stopRelay != nil {
		s.stopRelay()
		select {
		case <-s.relayDone:
		case <-ctx.Done():
		}
	}
	return err
}
