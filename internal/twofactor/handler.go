package twofactor

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/httperr"
)

// Handler exposes the /2fa endpoints for the signed-in account.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) Setup(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	enrollment, err := h.service.Setup(c.UserContext(), session.AccountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"secret":     enrollment.Secret,
		"otpauthUrl": enrollment.URI,
		"qrCode":     enrollment.QRCode,
	})
}

func (h *Handler) Verify(c *fiber.Ctx) error {
	return h.withCode(c, h.service.Confirm)
}

func (h *Handler) Disable(c *fiber.Ctx) error {
	return h.withCode(c, h.service.Disable)
}

func (h *Handler) Status(c *fiber.Ctx) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	status, err := h.service.Status(c.UserContext(), session.AccountID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"isEnabled":  status.Enabled,
		"isVerified": status.Verified,
	})
}

func (h *Handler) withCode(c *fiber.Ctx, apply func(ctx context.Context, accountID, code string) error) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	var req codeRequest
	if err := c.BodyParser(&req); err != nil {
		return httperr.BadRequest("malformed request body")
	}
	if err := apply(c.UserContext(), session.AccountID, req.Code); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCode):
			return httperr.New(http.StatusBadRequest, httperr.CodeInvalidCode, "Invalid code")
		case errors.Is(err, ErrNotSetUp):
			return httperr.New(http.StatusBadRequest, httperr.CodeTwoFactorNotSetUp, "2FA is not set up")
		default:
			return err
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}
