package prices

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the current market.
func Handler(feed *Feed) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(feed.Snapshot())
	}
}
