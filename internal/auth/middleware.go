package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

func authenticate(c *fiber.Ctx, secret []byte) (*Claims, error) {
	token := bearerFromHeader(c.Get("Authorization"))
	if token == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	claims, err := parseClaims(token, secret)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}
	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return claims, nil
}

// JWTMiddleware validates bearer tokens and stores user_id and role in locals.
func JWTMiddleware(secret string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		if _, err := authenticate(c, secretBytes); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireRole rejects callers whose role, as set by JWTMiddleware, differs
// from role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if got, _ := c.Locals("role").(string); got != role {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// AdminOnly is JWTMiddleware followed by RequireRole in a single handler, for
// routers that accept one middleware.
func AdminOnly(secret, role string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		claims, err := authenticate(c, secretBytes)
		if err != nil {
			return err
		}
		if claims.Role != role {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
