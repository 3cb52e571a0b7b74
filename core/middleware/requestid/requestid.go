package requestid

import (
	"prefork/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName is the request/response header carrying the request id.
const HeaderName = "X-Request-ID"

// New returns a middleware that assigns every request an id.
// An incoming X-Request-ID header is reused; otherwise a UUID is generated.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(HeaderName)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals(logger.RequestIDKey, id)
		c.Set(HeaderName, id)
		return c.Next()
	}
}
