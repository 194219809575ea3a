package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/daris/internal/config"
	"github.com/example/daris/internal/utils"
)

const adminContextKey = "currentAdmin"

// AdminAuth validates admin JWT bearer tokens and loads the admin subject
// into context. Token issuance lives in the platform's auth service.
func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		subject, err := utils.ParseAdminToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(adminContextKey, subject)
		return c.Next()
	}
}

// GetCurrentAdmin extracts the authenticated admin subject from context.
func GetCurrentAdmin(c *fiber.Ctx) (string, bool) {
	value := c.Locals(adminContextKey)
	if value == nil {
		return "", false
	}

	if subject, ok := value.(string); ok && subject != "" {
		return subject, true
	}

	return "", false
}
