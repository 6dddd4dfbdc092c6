package notification

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/logging"
	"github.com/securebank/securebank/internal/metrics"
)

func TestUpdatesStreamsEvents(t *testing.T) {
	hub := NewHub(4)
	h := NewStreamHandler(hub, metrics.New(), logging.Discard(), time.Minute)

	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	app.Get("/updates", func(c *fiber.Ctx) error {
		auth.SetSession(c, auth.Session{AccountID: "alice"})
		return c.Next()
	}, h.Updates)

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for hub.Connections("alice") == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		_ = hub.Send(context.Background(), Message{Kind: KindTransferReceived, Destination: "alice"})
		hub.Shutdown()
	}()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/updates", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "data: update\n\n") {
		t.Fatalf("expected update event, got %q", body)
	}
	if hub.Connections("alice") != 0 {
		t.Fatalf("subscription leaked")
	}
}

func TestUpdatesRequiresSession(t *testing.T) {
	h := NewStreamHandler(NewHub(1), nil, logging.Discard(), time.Minute)
	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(logging.Discard())})
	app.Get("/updates", h.Updates)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/updates", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
