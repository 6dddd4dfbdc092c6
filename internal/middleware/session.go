package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/auth"
	"github.com/securebank/securebank/internal/httperr"
)

// SessionAuth admits requests carrying a valid session token, from either the
// Authorization bearer header or the session cookie, and attaches the session.
func SessionAuth(authenticator *auth.Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Cookies(auth.CookieName)
		}
		if token == "" {
			return httperr.Unauthorized("authentication required")
		}

		session, err := authenticator.ParseSession(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidSession) {
				return httperr.Unauthorized("session invalid or expired")
			}
			return err
		}

		auth.SetSession(c, session)
		c.Locals(accountIDKey, session.AccountID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}
