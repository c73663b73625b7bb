package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/config"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// Counter increments a windowed counter and returns the new count. The TTL is
// applied when the key is first created.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisCounter struct {
	client *redis.Client
}

// NewRedisCounter backs the limiter with Redis INCR/EXPIRE.
func NewRedisCounter(client *redis.Client) Counter {
	return &redisCounter{client: client}
}

func (c *redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Limiter enforces a fixed request budget per client IP per window.
type Limiter struct {
	counter Counter
	logger  *zap.Logger
	max     int64
	window  time.Duration
}

// NewLimiter constructs the limiter.
func NewLimiter(counter Counter, cfg config.RateLimitConfig, logger *zap.Logger) *Limiter {
	max := int64(cfg.MaxRequests)
	if max <= 0 {
		max = 100
	}
	return &Limiter{
		counter: counter,
		logger:  logger,
		max:     max,
		window:  cfg.Window(),
	}
}

// Allow counts a request for the client and reports whether it fits the
// budget. Counter failures fail open so a Redis outage does not take the API
// down with it.
func (l *Limiter) Allow(ctx context.Context, clientIP string, now time.Time) bool {
	key := fmt.Sprintf("ratelimit:%s:%d", clientIP, now.Unix()/int64(l.window.Seconds()))
	count, err := l.counter.Incr(ctx, key, l.window)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable", zap.Error(err))
		return true
	}
	return count <= l.max
}

// Middleware rejects requests over budget with a rate-limit error.
func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.UserContext(), c.IP(), time.Now()) {
			return apperrors.NewTooManyRequests("too many requests, please try again later")
		}
		return c.Next()
	}
}
