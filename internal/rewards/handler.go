package rewards

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/middleware"
)

// Handler exposes reward endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a rewards HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type claimRequest struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// Claim records a reward for the authenticated account.
func (h *Handler) Claim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.New(apperr.KindValidation, "invalid_body", "Invalid request body")
	}
	res, err := h.service.Claim(c.UserContext(), ClaimInput{
		AccountID: middleware.AccountID(c),
		Method:    req.Method,
		Amount:    req.Amount,
	})
	if err != nil {
		if wait, ok := remaining(err); ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":     true,
		"earning":     res.Record,
		"newBalance":  res.Balance,
		"totalEarned": res.TotalEarned,
	})
}

// History lists the caller's latest rewards, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	records, err := h.service.History(c.UserContext(), middleware.AccountID(c), c.QueryInt("limit", HistoryLimit))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(records)
}

type methodResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	MinAmount      decimal.Decimal `json:"minAmount"`
	MaxAmount      decimal.Decimal `json:"maxAmount"`
	Cooldown       int64           `json:"cooldown"`
	CooldownEndsAt any             `json:"cooldownEndsAt"`
}

// Methods lists the method catalogue with the caller's cooldowns.
func (h *Handler) Methods(c *fiber.Ctx) error {
	statuses, err := h.service.Methods(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return err
	}
	out := make([]methodResponse, 0, len(statuses))
	for _, st := range statuses {
		resp := methodResponse{
			ID:          st.ID,
			Name:        st.Name,
			Description: st.Description,
			MinAmount:   st.MinAmount,
			MaxAmount:   st.MaxAmount,
			Cooldown:    st.CooldownSeconds(),
		}
		if st.CooldownEndsAt != nil {
			resp.CooldownEndsAt = st.CooldownEndsAt.UnixMilli()
		}
		out = append(out, resp)
	}
	return c.Status(http.StatusOK).JSON(out)
}
