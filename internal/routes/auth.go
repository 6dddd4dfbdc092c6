package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/auth"
)

// RegisterAuthRoutes wires the login endpoint behind the rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
}
