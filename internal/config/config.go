package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/db"
	"github.com/passbi/passbi_trip/internal/geocode"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/overlay"
	"github.com/passbi/passbi_trip/internal/resolve"
	"github.com/passbi/passbi_trip/internal/transit"
	"github.com/passbi/passbi_trip/internal/trip"
)

// Config holds all application settings
type Config struct {
	Env      string
	LogLevel string
	APIPort  string

	PlannerBaseURL  string
	PlannerTimeout  time.Duration
	PlannerLanguage string

	GeocoderBaseURL     string
	GeocoderTimeout     time.Duration
	GeocoderUserAgent   string
	GeocoderViewbox     string
	GeocoderLimit       int
	GeocoderQuerySuffix string
	GeocoderRatePerSec  float64
	GeocoderCacheSize   int
	GeocoderCacheTTL    time.Duration

	LocationFallbackEnabled bool
	LocationFallbackLat     float64
	LocationFallbackLng     float64

	NearbyRadiusKm         float64
	OverlayFrameWalkPoints bool

	RedisEnabled    bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisTLS        bool
	RouteCacheTTL   time.Duration
	StationCacheTTL time.Duration
	RateLimitPerMin int

	DBEnabled  bool
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	DBMinConns int32
	DBMaxConns int32
}

// Load reads the configuration from the environment and an optional .env file
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		APIPort:  getEnv("API_PORT", "8080"),

		PlannerBaseURL:  getEnv("PLANNER_BASE_URL", "http://localhost:5000"),
		PlannerTimeout:  getDurationEnv("PLANNER_TIMEOUT", 30*time.Second),
		PlannerLanguage: strings.ToLower(getEnv("PLANNER_LANGUAGE", "en")),

		GeocoderBaseURL:     getEnv("GEOCODER_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout:     getDurationEnv("GEOCODER_TIMEOUT", 15*time.Second),
		GeocoderUserAgent:   getEnv("GEOCODER_USER_AGENT", "RiyadhTransportApp/1.0"),
		GeocoderViewbox:     getEnv("GEOCODER_VIEWBOX", "46.5,24.5,47.0,25.0"),
		GeocoderLimit:       getIntEnv("GEOCODER_LIMIT", 10),
		GeocoderQuerySuffix: getEnv("GEOCODER_QUERY_SUFFIX", ", Riyadh"),
		GeocoderRatePerSec:  getFloatEnv("GEOCODER_RATE_PER_SEC", 1),
		GeocoderCacheSize:   getIntEnv("GEOCODER_CACHE_SIZE", 1000),
		GeocoderCacheTTL:    getDurationEnv("GEOCODER_CACHE_TTL", 24*time.Hour),

		LocationFallbackEnabled: getBoolEnv("LOCATION_FALLBACK_ENABLED", false),
		LocationFallbackLat:     getFloatEnv("LOCATION_FALLBACK_LAT", 24.7136),
		LocationFallbackLng:     getFloatEnv("LOCATION_FALLBACK_LNG", 46.6753),

		NearbyRadiusKm:         getFloatEnv("NEARBY_RADIUS_KM", transit.DefaultNearbyRadiusKm),
		OverlayFrameWalkPoints: getBoolEnv("OVERLAY_FRAME_WALK_POINTS", false),

		RedisEnabled:    getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		RedisTLS:        getBoolEnv("REDIS_TLS_ENABLED", false),
		RouteCacheTTL:   getDurationEnv("ROUTE_CACHE_TTL", 10*time.Minute),
		StationCacheTTL: getDurationEnv("STATION_CACHE_TTL", 6*time.Hour),
		RateLimitPerMin: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),

		DBEnabled:  getBoolEnv("DB_ENABLED", false),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getIntEnv("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "passbi_trip"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBMinConns: int32(getIntEnv("DB_MIN_CONNS", 2)),
		DBMaxConns: int32(getIntEnv("DB_MAX_CONNS", 10)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail on first use
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PlannerBaseURL) == "" {
		return fmt.Errorf("PLANNER_BASE_URL is required")
	}
	if c.GeocoderViewbox != "" {
		if err := validateViewbox(c.GeocoderViewbox); err != nil {
			return fmt.Errorf("GEOCODER_VIEWBOX: %w", err)
		}
	}
	if c.LocationFallbackEnabled && !c.fallbackCenter().Valid() {
		return fmt.Errorf("LOCATION_FALLBACK_LAT/LNG out of range")
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Transit returns the planner client settings
func (c *Config) Transit() transit.Config {
	return transit.Config{
		BaseURL:  c.PlannerBaseURL,
		Language: c.PlannerLanguage,
		Timeout:  c.PlannerTimeout,
	}
}

// Geocoder returns the geocoder client settings
func (c *Config) Geocoder() geocode.Config {
	return geocode.Config{
		BaseURL:       c.GeocoderBaseURL,
		UserAgent:     c.GeocoderUserAgent,
		Viewbox:       c.GeocoderViewbox,
		Limit:         c.GeocoderLimit,
		Language:      c.PlannerLanguage,
		QuerySuffix:   c.GeocoderQuerySuffix,
		Timeout:       c.GeocoderTimeout,
		RatePerSecond: c.GeocoderRatePerSec,
		CacheSize:     c.GeocoderCacheSize,
		CacheTTL:      c.GeocoderCacheTTL,
	}
}

// Resolver returns the endpoint resolver settings
func (c *Config) Resolver() resolve.Options {
	var opts resolve.Options
	if c.LocationFallbackEnabled {
		center := c.fallbackCenter()
		opts.FallbackCenter = &center
	}
	return opts
}

// Planner returns the trip pipeline settings
func (c *Config) Planner() trip.Options {
	return trip.Options{
		Language:        c.PlannerLanguage,
		RouteCacheTTL:   c.RouteCacheTTL,
		StationCacheTTL: c.StationCacheTTL,
		Overlay:         overlay.Options{FrameWalkEndpoints: c.OverlayFrameWalkPoints},
	}
}

// Redis returns the Redis connection settings
func (c *Config) Redis() cache.Config {
	return cache.Config{
		Addr:       c.RedisAddr,
		Password:   c.RedisPassword,
		DB:         c.RedisDB,
		TLSEnabled: c.RedisTLS,
	}
}

// Database returns the Postgres connection settings
func (c *Config) Database() db.Config {
	return db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		Database: c.DBName,
		User:     c.DBUser,
		Password: c.DBPassword,
		SSLMode:  c.DBSSLMode,
		MinConns: c.DBMinConns,
		MaxConns: c.DBMaxConns,
	}
}

func (c *Config) fallbackCenter() models.Coordinate {
	return models.Coordinate{Lat: c.LocationFallbackLat, Lng: c.LocationFallbackLng}
}

// validateViewbox checks the "minLng,minLat,maxLng,maxLat" format
func validateViewbox(v string) error {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return fmt.Errorf("expected 4 comma-separated numbers, got %q", v)
	}
	for _, p := range parts {
		if _, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return fmt.Errorf("invalid number %q", p)
		}
	}
	return nil
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatEnv(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getBoolEnv(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
