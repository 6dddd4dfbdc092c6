package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/config"
	"github.com/securebank/securebank/internal/events"
	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/ledger"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/notification"
	"github.com/securebank/securebank/internal/payments"
	"github.com/securebank/securebank/internal/twofactor"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Hub       *notification.Hub
	Notifier  notification.Notifier
	Publisher events.Publisher
	// HashCost overrides the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// Setup configures middlewares and all application routes. Without a database the
// in-memory stores are used, which is only allowed in dev.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Hub == nil {
		d.Hub = notification.NewHub(0)
	}
	if d.Notifier == nil {
		d.Notifier = d.Hub
	}
	if d.Publisher == nil {
		d.Publisher = events.NewNoopPublisher(d.Logger)
	}
	if d.HashCost == 0 {
		d.HashCost = bcrypt.DefaultCost
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	if d.Metrics != nil {
		app.Use(d.Metrics.Middleware())
	}
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	// Stores
	var (
		identityRepo  identity.Repository
		ledgerBackend ledger.Ledger
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		ledgerBackend = ledger.NewInMemory()
	}

	// Services and handlers
	identitySvc := identity.NewService(identityRepo, d.Cfg.StartingBalance).WithHashCost(d.HashCost)
	tokens := auth.NewTokens(d.Cfg.SessionSecret, d.Cfg.SessionTTL, d.Cfg.AppName)
	authenticator := auth.NewAuthenticator(identitySvc, identityRepo, tokens)
	authHandler := auth.NewHandler(authenticator, d.Metrics, d.Logger, !d.Cfg.IsDev())
	twoFactorHandler := twofactor.NewHandler(twofactor.NewService(identityRepo, d.Cfg.TOTPIssuer, d.Logger))
	paymentSvc := payments.NewService(ledgerBackend, identitySvc, d.Notifier, d.Publisher, d.Logger)
	paymentHandler := payments.NewHandler(paymentSvc, d.Metrics)
	streamHandler := notification.NewStreamHandler(d.Hub, d.Metrics, d.Logger, 0)

	RegisterHealthRoutes(app, d)
	if d.Cfg.IsDev() {
		RegisterDebugRoutes(app, identitySvc)
	}

	// Public routes
	RegisterIdentityRoutes(app, identitySvc, ledgerBackend, d.Logger)
	RegisterAuthRoutes(app, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger))

	// Protected routes
	session := middleware.SessionAuth(authenticator)
	app.Post("/logout", session, authHandler.Logout)
	RegisterPaymentRoutes(app, paymentHandler, session, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterTwoFactorRoutes(app, twoFactorHandler, session)
	app.Get("/updates", session, streamHandler.Updates)

	return nil
}
