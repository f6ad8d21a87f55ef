package httpapi

import (
	"errors"
	"strings"

	"github.com/fixrx/auth-service/internal/token"
	"github.com/gofiber/fiber/v2"
)

const claimsLocal = "authClaims"

// AccessVerifier is the slice of the auth service the middleware needs.
type AccessVerifier interface {
	VerifyAccess(tokenStr string) (*token.Claims, error)
}

// RequireAuth parses the Authorization header and rejects the request unless
// it carries a valid bearer access token. Verified claims are stored on the
// request context for handlers.
func RequireAuth(verifier AccessVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if header == "" {
			return fail(c, fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return fail(c, fiber.StatusUnauthorized, "malformed authorization header")
		}

		claims, err := verifier.VerifyAccess(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				return fail(c, fiber.StatusUnauthorized, "token expired")
			}
			return fail(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// claimsFrom returns the claims stored by RequireAuth, or nil when the route
// was not guarded.
func claimsFrom(c *fiber.Ctx) *token.Claims {
	claims, _ := c.Locals(claimsLocal).(*token.Claims)
	return claims
}
