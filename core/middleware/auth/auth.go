package auth

import (
	"crypto/subtle"

	"prefork/core/settings"

	"github.com/gofiber/fiber/v2"
)

// TokenParam is the query parameter carrying the control token.
const TokenParam = "token"

// Config holds configuration for the auth middleware.
type Config struct {
	// Mode selects token or no-token authentication.
	Mode settings.AuthMode
	// Token is the shared secret compared in token mode.
	Token string
}

// New returns the control endpoint auth middleware.
// In no-token mode every request passes. In token mode the `token` query
// parameter must match; anything else is rejected with 403.
func New(cfg Config) fiber.Handler {
	expected := []byte(cfg.Token)

	return func(c *fiber.Ctx) error {
		if cfg.Mode == settings.AuthNoToken {
			return c.Next()
		}

		given := []byte(c.Query(TokenParam))
		if len(expected) == 0 || subtle.ConstantTimeCompare(given, expected) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Invalid auth token",
			})
		}
		return c.Next()
	}
}
