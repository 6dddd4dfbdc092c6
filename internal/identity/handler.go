package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/httperr"
)

// AccountOpener opens the ledger side of a freshly registered account.
type AccountOpener interface {
	EnsureAccount(ctx context.Context, accountID string, opening decimal.Decimal) error
}

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	opener  AccountOpener
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, opener AccountOpener, logger *slog.Logger) *Handler {
	return &Handler{service: service, opener: opener, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Register handles customer onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return httperr.BadRequest("malformed request body")
	}
	account, err := h.service.Register(c.UserContext(), RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return httperr.New(http.StatusConflict, httperr.CodeEmailTaken, "Email already exists")
		}
		return err
	}
	if h.opener != nil {
		if err := h.opener.EnsureAccount(c.UserContext(), account.ID, account.OpeningBalance); err != nil {
			return err
		}
	}
	if h.logger != nil {
		h.logger.Info("identity.register completed",
			slog.String("account_id", account.ID),
			slog.Int("status", http.StatusCreated),
		)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user": userResponse{ID: account.ID, Email: account.Email, Name: account.Name},
	})
}
