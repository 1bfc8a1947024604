package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passbi/passbi_trip/internal/api"
	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/config"
	"github.com/passbi/passbi_trip/internal/db"
	"github.com/passbi/passbi_trip/internal/favorites"
	"github.com/passbi/passbi_trip/internal/geocode"
	"github.com/passbi/passbi_trip/internal/logger"
	"github.com/passbi/passbi_trip/internal/middleware"
	"github.com/passbi/passbi_trip/internal/resolve"
	"github.com/passbi/passbi_trip/internal/stations"
	"github.com/passbi/passbi_trip/internal/transit"
	"github.com/passbi/passbi_trip/internal/trip"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(appLogger)
	appLogger.Info("starting trip gateway", "env", cfg.Env, "planner", cfg.PlannerBaseURL, "language", cfg.PlannerLanguage)

	ctx := context.Background()

	// Redis backs the route cache, the station snapshot and the rate limiter
	var store *cache.Store
	if cfg.RedisEnabled {
		client, err := cache.NewClient(ctx, cfg.Redis())
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = cache.NewStore(client, appLogger)
		defer store.Close()
		appLogger.Info("redis connection established", "addr", cfg.RedisAddr)
	}

	// Postgres backs favorites
	var (
		pool *pgxpool.Pool
		favs *favorites.Store
	)
	if cfg.DBEnabled {
		pool, err = db.NewPool(ctx, cfg.Database())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		favs = favorites.NewStore(pool, appLogger)
		if err := favs.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare favorites schema: %v", err)
		}
		appLogger.Info("database connection established", "host", cfg.DBHost, "database", cfg.DBName)
	}

	index := stations.NewIndex(appLogger)
	geocoder := geocode.NewClient(cfg.Geocoder(), appLogger)
	transitClient := transit.NewClient(cfg.Transit(), appLogger)
	resolver := resolve.New(index, geocoder, nil, cfg.Resolver(), appLogger)
	planner := trip.New(index, transitClient, resolver, store, cfg.Planner(), appLogger)

	// A failed load is retried on the first request that needs the index
	loadCtx, cancel := context.WithTimeout(ctx, cfg.PlannerTimeout)
	if snap, err := planner.LoadStations(loadCtx); err != nil {
		appLogger.Warn("station index not loaded at startup", "error", err)
	} else {
		appLogger.Info("station index loaded", "stations", snap.Len())
	}
	cancel()

	app := fiber.New(fiber.Config{
		AppName:      "PassBi Trip API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.PlannerTimeout + cfg.GeocoderTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: api.ErrorHandler(appLogger),
	})

	// Middleware
	app.Use(recover.New())
	if cfg.IsDevelopment() {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.RequestLogger(appLogger))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + api.SessionHeader,
	}))
	if store != nil {
		limiter := middleware.NewRateLimiter(store.Client(), cfg.RateLimitPerMin, time.Minute, appLogger)
		app.Use(limiter.Handler())
	}

	// Routes
	api.NewHandler(api.Deps{
		Planner:        planner,
		Cache:          store,
		DB:             pool,
		Favorites:      favs,
		NearbyRadiusKm: cfg.NearbyRadiusKm,
	}, appLogger).Register(app)

	// 404 handler
	app.Use(api.NotFound)

	addr := fmt.Sprintf(":%s", cfg.APIPort)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		appLogger.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			appLogger.Error("error during shutdown", "error", err)
		}
	}()

	appLogger.Info("server listening", "addr", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
