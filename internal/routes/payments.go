package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/payments"
)

// RegisterPaymentRoutes wires balance, profile and transfer endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, session, idempotency fiber.Handler) {
	r.Get("/user", session, h.Profile)
	r.Get("/balance", session, h.Balance)
	r.Get("/transactions", session, h.Transactions)
	r.Post("/transfer", session, idempotency, h.Transfer)
}
