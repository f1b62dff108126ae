package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/withdrawals"
)

// RegisterWithdrawalRoutes wires withdrawal endpoints.
func RegisterWithdrawalRoutes(r fiber.Router, h *withdrawals.Handler, idempotency fiber.Handler) {
	r.Post("/withdraw", idempotency, h.Withdraw)
	r.Get("/withdrawals", h.List)
}
