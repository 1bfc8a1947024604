package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window request limiter keyed by client IP.
// Counters live in Redis so every gateway instance shares them.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// A limit <= 0 disables limiting.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		now:    time.Now,
		logger: logger.With("component", "ratelimit"),
	}
}

// windowKey returns the counter key and the end of the current window
func (l *RateLimiter) windowKey(clientID string) (string, time.Time) {
	now := l.now()
	start := now.Truncate(l.window)
	return fmt.Sprintf("rl:client:%s:%d", clientID, start.Unix()), start.Add(l.window)
}

// Allow counts one request for the client and reports the count in the current window
func (l *RateLimiter) Allow(ctx context.Context, clientID string) (int64, time.Time, error) {
	key, resetAt := l.windowKey(clientID)

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// Keep the counter a little past the window end
	pipe.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, resetAt, fmt.Errorf("failed to count request: %w", err)
	}

	return incr.Val(), resetAt, nil
}

// Reset clears the client's counter for the current window
func (l *RateLimiter) Reset(ctx context.Context, clientID string) error {
	key, _ := l.windowKey(clientID)
	return l.rdb.Del(ctx, key).Err()
}

// Handler returns the fiber middleware.
// Redis failures let the request through.
func (l *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if l.rdb == nil || l.limit <= 0 {
			return c.Next()
		}

		count, resetAt, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			l.logger.Warn("rate limit check failed", "error", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > int64(l.limit) {
			retryAfter := int64(resetAt.Sub(l.now()).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests",
				"limit":       l.limit,
				"retry_after": retryAfter,
			})
		}

		c.Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.limit)-count, 10))
		return c.Next()
	}
}
