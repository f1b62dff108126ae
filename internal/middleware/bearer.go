package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
)

const accountIDKey = "account_id"

// TokenResolver maps a bearer token onto the account it authenticates.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// BearerAuth authenticates requests with an "Authorization: Bearer <token>"
// header. A missing token is rejected as unauthenticated, a token for an
// unknown account as not found, and any other failure as forbidden.
func BearerAuth(resolver TokenResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authz == "" {
			return apperr.ErrMissingToken
		}
		scheme, token, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return apperr.ErrInvalidToken
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return apperr.ErrMissingToken
		}

		accountID, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.KindUnauthenticated, apperr.KindForbidden, apperr.KindNotFound, apperr.KindInternal:
				return err
			}
			return apperr.ErrInvalidToken
		}

		c.Locals(accountIDKey, accountID)
		return c.Next()
	}
}

// AccountID returns the account authenticated by BearerAuth, or "".
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(accountIDKey).(string)
	return id
}
