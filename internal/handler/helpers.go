package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/lumora-app/lumora-api/internal/service"
)

// identityFromContext rebuilds the caller identity from the locals set by the
// JWT middleware.
func identityFromContext(c *fiber.Ctx) service.Identity {
	identity := service.Identity{Role: service.RoleUser}

	if userID, ok := c.Locals("user_id").(uint); ok {
		identity.UserID = userID
	}
	if role, ok := c.Locals("user_role").(string); ok {
		identity.Role = service.ParseRole(role)
	}

	return identity
}

func parseQueryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseParamUint(c *fiber.Ctx, key string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}
