package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hiddenhill/api/internal/logger"
	"github.com/hiddenhill/api/pkg/response"
)

// RateLimiter counts requests per client in fixed Redis windows
type RateLimiter struct {
	redis   *redis.Client
	timeout time.Duration
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient, timeout: 500 * time.Millisecond}
}

// Limit creates a rate limiting middleware keyed by client IP. A limit of
// zero or less disables it; Redis errors let the request through.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if maxRequests <= 0 || rl.redis == nil {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx, cancel := context.WithTimeout(c.UserContext(), rl.timeout)
		defer cancel()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			logger.Warnf("Rate limiter unavailable, allowing request: %v", err)
			return c.Next()
		}

		// Set expiration on first request. A counter without a TTL would
		// block the client for good, so drop it when the expiry can't be set.
		if count == 1 {
			if err := rl.redis.Expire(ctx, key, window).Err(); err != nil {
				logger.Warnf("Rate limiter could not set expiry, allowing request: %v", err)
				rl.redis.Del(ctx, key)
				return c.Next()
			}
		}

		if count > int64(maxRequests) {
			ttl, err := rl.redis.TTL(ctx, key).Result()
			if err == nil && ttl < 0 {
				rl.redis.Expire(ctx, key, window)
				ttl = window
			}
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// GenerateLimit returns a rate limiter for video submissions
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}
