package config

import (
	"path/filepath"
	"testing"
	"time"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envFileEnvVar, filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{"APP_ENV", "DATABASE_URL", "REDIS_URL", "SESSION_SECRET", "STARTING_BALANCE", "SESSION_TTL", shutdownSecondsEnvVar} {
		t.Setenv(key, "")
	}
}

func TestLoadDevDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StartingBalance.String() != "500" {
		t.Fatalf("expected starting balance 500, got %s", cfg.StartingBalance)
	}
	if cfg.SessionSecret == "" {
		t.Fatalf("expected dev session secret fallback")
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
	if cfg.ShutdownPeriod != defaultShutdownDelay {
		t.Fatalf("expected default shutdown delay, got %s", cfg.ShutdownPeriod)
	}
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	isolateEnv(t)
	t.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}

	t.Setenv("DATABASE_URL", "postgres://bank@localhost/bank")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "short")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for short session secret")
	}

	t.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv(shutdownSecondsEnvVar, "3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown period, got %s", cfg.ShutdownPeriod)
	}
}

func TestLoadRejectsNegativeStartingBalance(t *testing.T) {
	isolateEnv(t)
	t.Setenv("STARTING_BALANCE", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected negative starting balance to be rejected")
	}
}
