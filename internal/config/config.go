package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName         = "SecureBank"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = 24 * time.Hour
	defaultStartingBalance = "500.00"
	defaultTOTPIssuer      = "SecureBank"
	defaultLoginRateLimit  = 10
	devSessionSecret       = "dev-only-session-secret-change-me"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	envFileEnvVar          = "ENV_FILE"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	RabbitMQURL     string
	SessionSecret   string
	SessionTTL      time.Duration
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	StartingBalance decimal.Decimal
	TOTPIssuer      string
	LoginRateLimit  int
}

// Load reads configuration values from the environment (and an optional .env file)
// and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("SESSION_TTL", defaultSessionTTL)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("STARTING_BALANCE", defaultStartingBalance)
	v.SetDefault("TOTP_ISSUER", defaultTOTPIssuer)
	v.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", defaultLoginRateLimit)
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "RABBITMQ_URL", "SESSION_SECRET", shutdownSecondsEnvVar, idemTTLSecondsEnvVar} {
		_ = v.BindEnv(key)
	}

	envFile := os.Getenv(envFileEnvVar)
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	cfg := Config{
		AppName:        v.GetString("APP_NAME"),
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		SessionSecret:  v.GetString("SESSION_SECRET"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		ShutdownPeriod: v.GetDuration("SHUTDOWN_TIMEOUT"),
		IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		TOTPIssuer:     v.GetString("TOTP_ISSUER"),
		LoginRateLimit: v.GetInt("LOGIN_RATE_LIMIT_PER_MINUTE"),
	}

	if v.IsSet(shutdownSecondsEnvVar) {
		cfg.ShutdownPeriod = time.Duration(v.GetInt(shutdownSecondsEnvVar)) * time.Second
	}
	if v.IsSet(idemTTLSecondsEnvVar) {
		cfg.IdempotencyTTL = time.Duration(v.GetInt(idemTTLSecondsEnvVar)) * time.Second
	}

	balance, err := decimal.NewFromString(v.GetString("STARTING_BALANCE"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	if balance.IsNegative() {
		return Config{}, errors.New("STARTING_BALANCE must not be negative")
	}
	cfg.StartingBalance = balance.Round(2)

	if cfg.SessionTTL <= 0 {
		return Config{}, errors.New("SESSION_TTL must be positive")
	}

	if cfg.IsDev() {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = devSessionSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}
	if len(cfg.SessionSecret) < 32 {
		return Config{}, errors.New("SESSION_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local/development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
