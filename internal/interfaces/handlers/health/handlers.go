package health

import (
	"context"

	"khpl-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Handlers reports process and dependency health.
type Handlers struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// Health GET /health — DB and Redis connectivity plus request counters.
func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx := context.Background()
	status := "healthy"

	dbStatus := "not configured"
	if h.DB != nil {
		dbStatus = "connected"
		if sqlDB, err := h.DB.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "disconnected"
			status = "unhealthy"
		}
	}

	redisStatus := "not configured"
	var reqTotal, reqErrors int64
	if h.Rdb != nil {
		redisStatus = "connected"
		if err := h.Rdb.Ping(ctx).Err(); err != nil {
			redisStatus = "disconnected"
			status = "unhealthy"
		} else {
			reqTotal, _ = h.Rdb.Get(ctx, middleware.KeyReqTotal).Int64()
			reqErrors, _ = h.Rdb.Get(ctx, middleware.KeyReqErrors).Int64()
		}
	}

	code := fiber.StatusOK
	if status == "unhealthy" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"database":   dbStatus,
		"redis":      redisStatus,
		"req_total":  reqTotal,
		"req_errors": reqErrors,
	})
}

// Ping GET /api/ping — liveness check that does not touch any store.
func (h *Handlers) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
