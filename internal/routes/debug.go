package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/securebank/securebank/internal/identity"
)

// RegisterDebugRoutes exposes account listings for local development only.
func RegisterDebugRoutes(app *fiber.App, ids *identity.Service) {
	app.Get("/debug/users", func(c *fiber.Ctx) error {
		accounts, err := ids.List(c.UserContext())
		if err != nil {
			return err
		}
		out := make([]fiber.Map, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, fiber.Map{
				"id":                a.ID,
				"email":             a.Email,
				"name":              a.Name,
				"twoFactorEnabled":  a.TwoFactor.Enabled,
				"twoFactorVerified": a.TwoFactor.Verified,
			})
		}
		return c.Status(http.StatusOK).JSON(out)
	})
}
