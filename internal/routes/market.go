package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/prices"
)

// RegisterMarketRoutes wires public market data.
func RegisterMarketRoutes(r fiber.Router, feed *prices.Feed) {
	r.Get("/crypto-prices", prices.Handler(feed))
}
