package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/ledger"
)

// RegisterIdentityRoutes wires registration and opens the ledger account for each
// new customer.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, l ledger.Ledger, logger *slog.Logger) {
	handler := identity.NewHandler(ids, l, logger)
	r.Post("/register", handler.Register)
}
