package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/config"
	"github.com/passbi/passbi_trip/internal/geocode"
	"github.com/passbi/passbi_trip/internal/logger"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/resolve"
	"github.com/passbi/passbi_trip/internal/stations"
	"github.com/passbi/passbi_trip/internal/transit"
	"github.com/passbi/passbi_trip/internal/trip"
)

func main() {
	// Command-line flags
	from := flag.String("from", "", "Origin: station:<name>, text:<query>, <lat>,<lng> or here (required)")
	to := flag.String("to", "", "Destination, same syntax as -from (required)")
	lat := flag.Float64("lat", 0, "Last known latitude used for 'here'")
	lng := flag.Float64("lng", 0, "Last known longitude used for 'here'")
	withGeoJSON := flag.Bool("geojson", false, "Print the route overlay as GeoJSON")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")

	flag.Parse()

	// Validate required flags
	if *from == "" || *to == "" {
		fmt.Println("Usage: plan -from=<endpoint> -to=<endpoint> [-geojson] [-lat=<lat> -lng=<lng>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	origin, err := parseEndpoint(*from)
	if err != nil {
		log.Fatalf("Invalid -from: %v", err)
	}
	destination, err := parseEndpoint(*to)
	if err != nil {
		log.Fatalf("Invalid -to: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Logs go to stderr so stdout stays clean for -geojson
	appLogger := logger.NewWithWriter(os.Stderr, cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var store *cache.Store
	if cfg.RedisEnabled {
		client, err := cache.NewClient(ctx, cfg.Redis())
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		store = cache.NewStore(client, appLogger)
		defer store.Close()
	}

	index := stations.NewIndex(appLogger)
	resolver := resolve.New(index, geocode.NewClient(cfg.Geocoder(), appLogger), nil, cfg.Resolver(), appLogger)
	planner := trip.New(index, transit.NewClient(cfg.Transit(), appLogger), resolver, store, cfg.Planner(), appLogger)

	if _, err := planner.LoadStations(ctx); err != nil {
		log.Fatalf("Failed to load stations: %v", err)
	}

	req := trip.Request{Origin: origin, Destination: destination}
	if flagSet("lat") && flagSet("lng") {
		req.Locator = resolve.FixedLocator(&models.Coordinate{Lat: *lat, Lng: *lng})
	}

	plan, err := planner.Plan(ctx, req)
	if err != nil {
		log.Fatalf("Planning failed: %v", err)
	}

	if *withGeoJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(plan.Overlay.FeatureCollection()); err != nil {
			log.Fatalf("Failed to encode GeoJSON: %v", err)
		}
		return
	}

	printPlan(os.Stdout, plan)
}

// parseEndpoint reads station:<name>, text:<query>, <lat>,<lng> or here
func parseEndpoint(s string) (models.Endpoint, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "here"):
		return models.CurrentLocation{}, nil
	case strings.HasPrefix(s, "station:"):
		name := strings.TrimSpace(strings.TrimPrefix(s, "station:"))
		if name == "" {
			return nil, fmt.Errorf("empty station name")
		}
		return models.KnownStation{Name: name}, nil
	case strings.HasPrefix(s, "text:"):
		query := strings.TrimSpace(strings.TrimPrefix(s, "text:"))
		if query == "" {
			return nil, fmt.Errorf("empty search text")
		}
		return models.FreeText{Query: query}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected station:<name>, text:<query>, <lat>,<lng> or here, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %w", err)
	}
	return models.RawCoordinate{Coord: models.Coordinate{Lat: lat, Lng: lng}}, nil
}

func printPlan(w io.Writer, plan *trip.Plan) {
	fmt.Fprintf(w, "From:  %s\n", plan.Origin.Label)
	fmt.Fprintf(w, "To:    %s\n", plan.Destination.Label)
	fmt.Fprintf(w, "Total: %d min\n\n", plan.TotalMinutes)

	for i, leg := range plan.Legs {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, leg.Headline, leg.DurationLabel)
		if leg.Detail != "" {
			fmt.Fprintf(w, "   %s\n", leg.Detail)
		}
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
