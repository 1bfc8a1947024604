package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/config"
	"github.com/passbi/passbi_trip/internal/db"
	"github.com/passbi/passbi_trip/internal/geocode"
	"github.com/passbi/passbi_trip/internal/logger"
	"github.com/passbi/passbi_trip/internal/transit"
)

// check verifies the services the gateway depends on and exits non-zero if any fails
func main() {
	geocodeQuery := flag.String("geocode", "", "Also run one geocoder search for this text")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("configuration: FAILED (%v)\n", err)
		os.Exit(1)
	}
	appLogger := logger.NewWithWriter(os.Stderr, cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	failed := false
	report := func(name string, err error, detail string) {
		if err != nil {
			failed = true
			fmt.Printf("%-10s FAILED (%v)\n", name+":", err)
			return
		}
		fmt.Printf("%-10s ok %s\n", name+":", detail)
	}

	// Planner
	fmt.Printf("Checking planner at %s (language %s)\n", cfg.PlannerBaseURL, cfg.PlannerLanguage)
	list, err := transit.NewClient(cfg.Transit(), appLogger).Stations(ctx)
	report("planner", err, fmt.Sprintf("(%d stations)", len(list)))

	// Geocoder
	if *geocodeQuery != "" {
		results, err := geocode.NewClient(cfg.Geocoder(), appLogger).Search(ctx, *geocodeQuery)
		detail := fmt.Sprintf("(%d results)", len(results))
		if len(results) > 0 {
			detail = fmt.Sprintf("(%d results, first: %s)", len(results), results[0].DisplayName)
		}
		report("geocoder", err, detail)
	}

	// Redis
	if cfg.RedisEnabled {
		client, err := cache.NewClient(ctx, cfg.Redis())
		if err == nil {
			store := cache.NewStore(client, appLogger)
			defer store.Close()

			detail := ""
			if entry, getErr := store.GetStations(ctx); getErr == nil && entry != nil {
				detail = fmt.Sprintf("(station snapshot from %s, fresh=%t)",
					entry.StoredAt.Format(time.RFC3339), entry.Fresh(cfg.StationCacheTTL))
			}
			err = store.HealthCheck(ctx)
			report("redis", err, detail)
		} else {
			report("redis", err, "")
		}
	}

	// Postgres
	if cfg.DBEnabled {
		pool, err := db.NewPool(ctx, cfg.Database())
		if err == nil {
			defer pool.Close()

			var version string
			var hasFavorites bool
			if err = pool.QueryRow(ctx, "SELECT version()").Scan(&version); err == nil {
				err = pool.QueryRow(ctx, "SELECT to_regclass('public.favorites') IS NOT NULL").Scan(&hasFavorites)
			}
			report("database", err, fmt.Sprintf("(%s, favorites table present=%t)", version, hasFavorites))
		} else {
			report("database", err, "")
		}
	}

	if failed {
		os.Exit(1)
	}
}
