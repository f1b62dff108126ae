package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/auth"
	"github.com/cryptoearn/cryptoearn/internal/stats"
)

// RegisterAuthRoutes wires the public account endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	r.Post("/register", h.Register)
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
}

// RegisterProfileRoutes wires the caller's own views.
func RegisterProfileRoutes(r fiber.Router, h *auth.Handler, s *stats.Handler) {
	r.Get("/profile", h.Profile)
	r.Get("/stats", s.Get)
}
