package requestid

import (
	"net/http/httptest"
	"testing"

	"prefork/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	app := fiber.New()
	app.Use(New())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(logger.RequestIDKey).(string))
	})

	t.Run("Generated", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)

		id := resp.Header.Get(HeaderName)
		_, err = uuid.Parse(id)
		assert.NoError(t, err)
	})

	t.Run("Propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(HeaderName, "upstream-1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "upstream-1", resp.Header.Get(HeaderName))
	})
}
