package auth

import "github.com/gofiber/fiber/v2"

const sessionLocalsKey = "session"

// SetSession attaches a verified session to the request.
func SetSession(c *fiber.Ctx, s Session) {
	c.Locals(sessionLocalsKey, s)
}

// SessionFrom returns the session attached by the session middleware.
func SessionFrom(c *fiber.Ctx) (Session, bool) {
	s, ok := c.Locals(sessionLocalsKey).(Session)
	return s, ok
}
