package notification

import (
	"bufio"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/metrics"
)

const defaultKeepAlive = 25 * time.Second

// StreamHandler serves live updates as server-sent events.
type StreamHandler struct {
	hub       *Hub
	metrics   *metrics.Metrics
	logger    *slog.Logger
	keepAlive time.Duration
}

func NewStreamHandler(hub *Hub, m *metrics.Metrics, logger *slog.Logger, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &StreamHandler{hub: hub, metrics: m, logger: logger, keepAlive: keepAlive}
}

// Updates holds the connection open and writes "data: update" for each message
// addressed to the signed-in account. The subscription is released when the client
// goes away or the hub shuts down.
func (h *StreamHandler) Updates(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe(session.AccountID)
	h.metrics.StreamOpened()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.metrics.StreamClosed()
		defer h.hub.Close(sub)

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		if _, err := w.WriteString(": connected\n\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case _, ok := <-sub.C():
				if !ok {
					return
				}
				if _, err := w.WriteString("data: update\n\n"); err != nil {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				if h.logger != nil {
					h.logger.Debug("live update stream closed", slog.String("account_id", session.AccountID))
				}
				return
			}
		}
	}))
	return nil
}
