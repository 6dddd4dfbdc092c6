package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/metrics", m.Handler())

	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/items/"+id, nil))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
	}

	got := testutil.ToFloat64(m.RequestCount.WithLabelValues(fiber.MethodGet, "/items/:id", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests recorded, got %v", got)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "http_requests_total") {
		t.Fatalf("expected exposition output, got %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveLogin(OutcomeSuccess)
	m.ObserveTransfer(OutcomeError)
	m.StreamOpened()
	m.StreamClosed()
}

func TestOutcomeCounters(t *testing.T) {
	m := New()
	m.ObserveLogin(OutcomeSecondFactorMissing)
	m.ObserveLogin(OutcomeSecondFactorMissing)
	m.ObserveTransfer(OutcomeInsufficientFunds)

	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues(OutcomeSecondFactorMissing)); got != 2 {
		t.Fatalf("expected 2 login attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.Transfers.WithLabelValues(OutcomeInsufficientFunds)); got != 1 {
		t.Fatalf("expected 1 transfer, got %v", got)
	}
}
