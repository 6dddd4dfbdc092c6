package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/twofactor"
)

// RegisterTwoFactorRoutes wires 2FA enrollment endpoints.
func RegisterTwoFactorRoutes(r fiber.Router, h *twofactor.Handler, session fiber.Handler) {
	group := r.Group("/2fa")
	group.Get("/setup", session, h.Setup)
	group.Post("/verify", session, h.Verify)
	group.Post("/disable", session, h.Disable)
	group.Get("/status", session, h.Status)
}
