package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/identity"
	"github.com/cryptoearn/cryptoearn/internal/middleware"
)

// Handler exposes register, login and profile endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var errInvalidBody = apperr.New(apperr.KindValidation, "invalid_body", "Invalid request body")

// Register creates an account and returns a session.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	session, err := h.svc.Register(c.UserContext(), identity.Registration{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": session.Token, "user": session.User})
}

// Login validates credentials and returns a session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return errInvalidBody
	}
	session, err := h.svc.Login(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": session.Token, "user": session.User})
}

// Profile returns the caller's public view.
func (h *Handler) Profile(c *fiber.Ctx) error {
	profile, err := h.svc.Profile(c.UserContext(), middleware.AccountID(c))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(profile)
}
