package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docportal/internal/apperr"
	"docportal/internal/model"
)

const (
	// IdentityLocalKey holds the *model.Identity of the signed-in user.
	IdentityLocalKey = "identity"
	// TokenLocalKey holds the raw bearer token.
	TokenLocalKey = "session_token"

	// accessTokenQuery carries the token for EventSource clients, which cannot
	// set request headers.
	accessTokenQuery = "access_token"
)

// IdentityResolver turns a session token into the identity behind it.
type IdentityResolver interface {
	Identify(ctx context.Context, token string) (*model.Identity, error)
}

// Authenticate rejects requests without a valid session token. The resolved
// identity and the token are stored in locals for later handlers.
func Authenticate(r IdentityResolver, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return apperr.ErrNotAuthenticated
		}

		ctx := c.UserContext()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		id, err := r.Identify(ctx, token)
		if err != nil {
			return err
		}

		c.Locals(IdentityLocalKey, id)
		c.Locals(TokenLocalKey, token)
		return c.Next()
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>", falling
// back to the access_token query parameter.
func BearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query(accessTokenQuery)
}

// IdentityFrom returns the identity stored by Authenticate, or nil.
func IdentityFrom(c *fiber.Ctx) *model.Identity {
	id, _ := c.Locals(IdentityLocalKey).(*model.Identity)
	return id
}

// TokenFrom returns the token stored by Authenticate, or "".
func TokenFrom(c *fiber.Ctx) string {
	t, _ := c.Locals(TokenLocalKey).(string)
	return t
}
