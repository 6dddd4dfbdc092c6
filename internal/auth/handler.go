package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/httperr"
	"github.com/securebank/securebank/internal/metrics"
)

// CookieName is the HttpOnly cookie carrying the session token.
const CookieName = "session"

// Handler exposes auth endpoints for login/logout.
type Handler struct {
	auth         *Authenticator
	metrics      *metrics.Metrics
	logger       *slog.Logger
	secureCookie bool
}

func NewHandler(auth *Authenticator, m *metrics.Metrics, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{auth: auth, metrics: m, logger: logger, secureCookie: secureCookie}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	SessionIssued bool     `json:"sessionIssued"`
	Token         string   `json:"token"`
	ExpiresIn     int64    `json:"expiresIn"`
	User          userView `json:"user"`
}

// Login checks the password, then the TOTP code when the account has 2FA active.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return httperr.BadRequest("malformed request body")
	}

	outcome, err := h.auth.Login(c.UserContext(), LoginRequest{Email: req.Email, Password: req.Password, Code: req.Code})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			h.metrics.ObserveLogin(metrics.OutcomeInvalidCredentials)
			return httperr.New(http.StatusUnauthorized, httperr.CodeInvalidCredentials, "Invalid credentials")
		case errors.Is(err, ErrSecondFactorRequired):
			h.metrics.ObserveLogin(metrics.OutcomeSecondFactorMissing)
			return httperr.New(http.StatusUnauthorized, httperr.CodeSecondFactorNeeded, "Two-factor code required")
		case errors.Is(err, ErrInvalidSecondFactor):
			h.metrics.ObserveLogin(metrics.OutcomeInvalidSecondFactor)
			return httperr.New(http.StatusUnauthorized, httperr.CodeInvalidCode, "Invalid two-factor code")
		default:
			h.metrics.ObserveLogin(metrics.OutcomeError)
			return err
		}
	}
	h.metrics.ObserveLogin(metrics.OutcomeSuccess)

	session := outcome.Session
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})

	if h.logger != nil {
		h.logger.Info("auth.login completed",
			slog.String("account_id", outcome.Account.ID),
			slog.Bool("two_factor", outcome.Account.TwoFactor.Active()),
		)
	}

	return c.Status(http.StatusOK).JSON(loginResponse{
		SessionIssued: true,
		Token:         session.Token,
		ExpiresIn:     int64(h.auth.Tokens().TTL().Seconds()),
		User:          userView{ID: outcome.Account.ID, Name: outcome.Account.Name, Email: outcome.Account.Email},
	})
}

// Logout invalidates existing sessions by bumping the session version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	session, ok := SessionFrom(c)
	if !ok {
		return httperr.Unauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), session.AccountID); err != nil {
		return err
	}
	c.ClearCookie(CookieName)
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
