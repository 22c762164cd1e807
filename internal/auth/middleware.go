package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"credentialing-backend/internal/engine"
	"credentialing-backend/internal/metadata"
)

// AuthMiddleware validates the bearer token and stores the caller's
// Identity on the request.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals(metadata.IdentityKey, claims.Identity())
		return c.Next()
	}
}

func GetIdentity(c *fiber.Ctx) *metadata.Identity {
	ident, _ := c.Locals(metadata.IdentityKey).(*metadata.Identity)
	return ident
}
