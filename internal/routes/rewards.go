package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/rewards"
)

// RegisterRewardRoutes wires reward claim endpoints.
func RegisterRewardRoutes(r fiber.Router, h *rewards.Handler, idempotency fiber.Handler) {
	r.Get("/earning-methods", h.Methods)
	r.Post("/claim-earning", idempotency, h.Claim)
	r.Get("/earnings-history", h.History)
}
