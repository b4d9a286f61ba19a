package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys shared with the health endpoint.
const (
	KeyReqTotal  = "health:req_total"
	KeyReqErrors = "health:req_errors"
	KeyResTime   = "health:res_time_total"
)

// RequestStats records request counters in Redis for the health endpoint.
// Skips health and favicon paths; no-op when Redis is not configured.
func RequestStats(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}
		path := c.Path()
		if strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		ctx := context.Background()
		_ = rdb.Incr(ctx, KeyReqTotal).Err()

		err := c.Next()

		_ = rdb.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds())).Err()
		if c.Response().StatusCode() >= 500 {
			_ = rdb.Incr(ctx, KeyReqErrors).Err()
		}
		return err
	}
}
