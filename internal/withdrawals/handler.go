package withdrawals

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/middleware"
)

// Handler exposes withdrawal endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a withdrawals HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type withdrawRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Address string          `json:"address"`
}

// Withdraw debits the caller and queues a payout.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid_body", "Invalid request body")
	}
	res, err := h.service.Request(c.UserContext(), RequestInput{
		AccountID: middleware.AccountID(c),
		Amount:    req.Amount,
		Address:   req.Address,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":    true,
		"withdrawal": res.Record,
		"newBalance": res.Balance,
	})
}

// List returns the caller's withdrawals, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(records)
}
