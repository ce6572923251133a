package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/lumora-app/lumora-api/internal/utils"
)

// HealthHandler reports service liveness and dependency reachability.
type HealthHandler struct {
	db      *gorm.DB
	redis   *redis.Client
	appName string
}

// NewHealthHandler constructs the health handler.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, appName string) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient, appName: appName}
}

// Live responds as soon as the process can serve requests.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "ok", fiber.Map{
		"service": h.appName,
		"time":    time.Now().UTC(),
	})
}

// Ready verifies the datastore connections before reporting ready.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = "unreachable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unreachable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "dependencies unavailable")
	}

	return utils.SendSuccess(c, "ready", checks)
}
