package stats

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns platform totals and the caller's figures.
func (h *Handler) Get(c *fiber.Ctx) error {
	snap, err := h.service.Snapshot(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(snap)
}
