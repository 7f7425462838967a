package middleware

import (
	"errors"
	"strings"

	"cvalign/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
)

const (
	CtxUserIDKey = "user_id"
	CtxEmailKey  = "email"
)

// TokenVerifier checks access tokens issued by the external auth service.
type TokenVerifier interface {
	ValidateToken(token string) (jwt.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

// NewAuthMiddleware returns a guard for write routes. A nil verifier turns it
// into a passthrough, which is how the API runs without JWT_ACCESS_SECRET.
func NewAuthMiddleware(v TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		if m == nil || m.verifier == nil {
			return c.Next()
		}

		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return Unauthorized("Unauthorized", nil)
		}

		claims, err := m.verifier.ValidateToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Unauthorized("Token expired", err)
		case err != nil:
			return Unauthorized("Invalid token", err)
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxEmailKey, claims.Email)
		return c.Next()
	}
}

// UserID is the authenticated subject, or "" on unauthenticated routes.
func UserID(c fiber.Ctx) string {
	id, _ := c.Locals(CtxUserIDKey).(string)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
