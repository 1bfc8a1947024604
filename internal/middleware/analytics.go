package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Locals keys shared with the handlers
const (
	LocalCacheHit  = "cache_hit"
	LocalSessionID = "session_id"
)

// RequestLog is the structured record written for each request
type RequestLog struct {
	Method         string
	Path           string
	ResponseStatus int
	ResponseTime   time.Duration
	CacheHit       bool
	SessionID      string
	IPAddress      string
	UserAgent      string
}

// RequestLogger logs every request through slog and sets debugging headers
func RequestLogger(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Render errors here so the logged status is the one sent
		failed := false
		if err := c.Next(); err != nil {
			failed = true
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		entry := RequestLog{
			Method:         c.Method(),
			Path:           c.Path(),
			ResponseStatus: c.Response().StatusCode(),
			ResponseTime:   time.Since(start),
			IPAddress:      c.IP(),
			UserAgent:      c.Get(fiber.HeaderUserAgent),
		}
		if hit, ok := c.Locals(LocalCacheHit).(bool); ok {
			entry.CacheHit = hit
		}
		if id, ok := c.Locals(LocalSessionID).(string); ok {
			entry.SessionID = id
		}

		c.Set("X-Response-Time", entry.ResponseTime.String())
		c.Set("X-Cache-Hit", boolToString(entry.CacheHit))

		level := slog.LevelInfo
		if failed || entry.ResponseStatus >= fiber.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.UserContext(), level, "request",
			"method", entry.Method,
			"path", entry.Path,
			"status", entry.ResponseStatus,
			"duration_ms", entry.ResponseTime.Milliseconds(),
			"cache_hit", entry.CacheHit,
			"session_id", entry.SessionID,
			"ip", entry.IPAddress,
			"user_agent", entry.UserAgent,
		)

		return nil
	}
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
