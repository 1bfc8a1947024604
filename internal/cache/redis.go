package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/passbi/passbi_trip/internal/models"
)

// StationsKey holds the last full station fetch
const StationsKey = "stations:snapshot"

// Config holds Redis configuration
type Config struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Enable TLS if configured (required for managed Redis)
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Entry is a cached value with the time it was stored.
// Whether it is still usable is the caller's decision (see Fresh).
type Entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// Fresh reports whether the entry is younger than ttl
func (e Entry[T]) Fresh(ttl time.Duration) bool {
	return time.Since(e.StoredAt) < ttl
}

// Store is a read/write cache capability backed by Redis
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore wraps a Redis client
func NewStore(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger.With("component", "cache")}
}

// Client exposes the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

// RouteKey generates a cache key for a coordinate pair
func RouteKey(from, to models.Coordinate, language string) string {
	// Create deterministic hash of coordinates
	data := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", from.Lat, from.Lng, to.Lat, to.Lng)
	hash := sha256.Sum256([]byte(data))
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf("route:%x:%s", hash[:8], language)
}

// LockKey generates a mutex lock key
func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// GetRoute retrieves a cached route. A miss returns nil, nil.
func (s *Store) GetRoute(ctx context.Context, key string) (*Entry[models.Route], error) {
	return get[models.Route](ctx, s, key)
}

// SetRoute caches a route. retention bounds how long Redis keeps it.
func (s *Store) SetRoute(ctx context.Context, key string, route models.Route, retention time.Duration) error {
	return set(ctx, s, key, route, retention)
}

// GetStations retrieves the cached station list. A miss returns nil, nil.
func (s *Store) GetStations(ctx context.Context) (*Entry[[]models.Station], error) {
	return get[[]models.Station](ctx, s, StationsKey)
}

// SetStations caches a full station list
func (s *Store) SetStations(ctx context.Context, list []models.Station, retention time.Duration) error {
	return set(ctx, s, StationsKey, list, retention)
}

func get[T any](ctx context.Context, s *Store, key string) (*Entry[T], error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached entry %s: %w", key, err)
	}

	return &entry, nil
}

func set[T any](ctx context.Context, s *Store, key string, value T, retention time.Duration) error {
	data, err := json.Marshal(Entry[T]{Value: value, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return s.client.Set(ctx, key, data, retention).Err()
}

// AcquireLock attempts to acquire a distributed lock
// Returns true if lock was acquired, false if already locked
func (s *Store) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	// Try to set the lock key with NX (only if not exists)
	ok, err := s.client.SetNX(ctx, LockKey(key), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseLock releases a distributed lock
func (s *Store) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, LockKey(key)).Err()
}

// WaitForRoute waits for another planner call holding the lock to finish and
// then reads its result. A nil entry means the holder stored nothing.
func (s *Store) WaitForRoute(ctx context.Context, key string, maxWait time.Duration) (*Entry[models.Route], error) {
	lockKey := LockKey(key)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		// Check if lock is released
		exists, err := s.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return s.GetRoute(ctx, key)
		}

		// Wait a bit before checking again
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil, fmt.Errorf("timeout waiting for lock")
}

// HealthCheck performs a health check on the Redis connection
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}
	return nil
}

// Stats returns Redis pool stats
func (s *Store) Stats() map[string]interface{} {
	poolStats := s.client.PoolStats()

	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}

// Close closes the Redis client
func (s *Store) Close() error {
	return s.client.Close()
}
