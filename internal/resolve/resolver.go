package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/geocode"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/stations"
)

// CurrentLocationLabel is the label of endpoints resolved from the device location
const CurrentLocationLabel = "My Location"

// ErrLocationUnavailable is returned by locators that have no fix
var ErrLocationUnavailable = errors.New("location unavailable")

// Geocoder searches free text
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Locator provides the device's last known location
type Locator interface {
	CurrentLocation(ctx context.Context) (models.Coordinate, error)
}

// LocatorFunc adapts a function to the Locator interface
type LocatorFunc func(ctx context.Context) (models.Coordinate, error)

// CurrentLocation calls f(ctx)
func (f LocatorFunc) CurrentLocation(ctx context.Context) (models.Coordinate, error) {
	return f(ctx)
}

// FixedLocator returns a fix supplied up front, e.g. by an API caller.
// A nil fix behaves like a device with location turned off.
func FixedLocator(fix *models.Coordinate) Locator {
	return LocatorFunc(func(ctx context.Context) (models.Coordinate, error) {
		if fix == nil {
			return models.Coordinate{}, ErrLocationUnavailable
		}
		return *fix, nil
	})
}

// Options tunes the resolver
type Options struct {
	// FallbackCenter is used when the current location cannot be obtained.
	// When nil, such endpoints fail with EndpointNotFound.
	FallbackCenter *models.Coordinate
}

// Resolver turns endpoint descriptors into coordinates, trying the station
// index first and the geocoder second
type Resolver struct {
	stations stations.Lookup
	geocoder Geocoder
	locator  Locator
	opts     Options
	logger   *slog.Logger
}

// New creates a resolver. locator may be nil.
func New(lookup stations.Lookup, geocoder Geocoder, locator Locator, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		stations: lookup,
		geocoder: geocoder,
		locator:  locator,
		opts:     opts,
		logger:   logger.With("component", "resolver"),
	}
}

// WithLocator returns a copy of the resolver using a different location source
func (r *Resolver) WithLocator(locator Locator) *Resolver {
	c := *r
	c.locator = locator
	return &c
}

// WithStations returns a copy of the resolver reading from a different station lookup
func (r *Resolver) WithStations(lookup stations.Lookup) *Resolver {
	c := *r
	c.stations = lookup
	return &c
}

// Resolve converts one endpoint descriptor into a coordinate and a label
func (r *Resolver) Resolve(ctx context.Context, ep models.Endpoint) (models.ResolvedEndpoint, error) {
	switch e := ep.(type) {
	case models.RawCoordinate:
		if !e.Coord.Valid() {
			return models.ResolvedEndpoint{}, apperr.Validation(fmt.Sprintf("coordinate %s out of range", e.Coord))
		}
		return models.ResolvedEndpoint{Coord: e.Coord, Label: CoordinateLabel(e.Coord)}, nil

	case models.KnownStation:
		if r.stations != nil {
			if st, ok := r.stations.Lookup(e.Name); ok {
				return models.ResolvedEndpoint{Coord: st.Coord, Label: st.DisplayName}, nil
			}
		}
		// Not in the index (or the index is still loading): geocode the name instead
		r.logger.Debug("falling back to geocoder", "error", apperr.StationIndexMiss(e.Name))
		return r.geocode(ctx, e.Name)

	case models.FreeText:
		return r.geocode(ctx, e.Query)

	case models.CurrentLocation:
		return r.currentLocation(ctx)

	case nil:
		return models.ResolvedEndpoint{}, apperr.Validation("endpoint is required")

	default:
		return models.ResolvedEndpoint{}, apperr.Validation(fmt.Sprintf("unsupported endpoint %s", ep))
	}
}

// ResolvePair resolves origin and destination concurrently.
// If either fails the other is cancelled and the first error is returned.
func (r *Resolver) ResolvePair(ctx context.Context, origin, destination models.Endpoint) (models.ResolvedEndpoint, models.ResolvedEndpoint, error) {
	var from, to models.ResolvedEndpoint

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = r.Resolve(gctx, origin)
		if err != nil {
			return fmt.Errorf("resolving origin: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		to, err = r.Resolve(gctx, destination)
		if err != nil {
			return fmt.Errorf("resolving destination: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.ResolvedEndpoint{}, models.ResolvedEndpoint{}, err
	}
	return from, to, nil
}

func (r *Resolver) geocode(ctx context.Context, query string) (models.ResolvedEndpoint, error) {
	if strings.TrimSpace(query) == "" {
		return models.ResolvedEndpoint{}, apperr.EndpointNotFound("empty query")
	}
	if r.geocoder == nil {
		return models.ResolvedEndpoint{}, apperr.GeocoderUnavailable(errors.New("no geocoder configured"))
	}

	results, err := r.geocoder.Search(ctx, query)
	if err != nil {
		return models.ResolvedEndpoint{}, err
	}

	for _, res := range results {
		coord, ok := res.ParsedCoordinate()
		if !ok {
			r.logger.Warn("skipping geocoder result with unparseable coordinates",
				"query", query, "result", res.DisplayName)
			continue
		}
		return models.ResolvedEndpoint{Coord: coord, Label: res.DisplayName}, nil
	}

	return models.ResolvedEndpoint{}, apperr.EndpointNotFound(fmt.Sprintf("no location found for %q", query))
}

func (r *Resolver) currentLocation(ctx context.Context) (models.ResolvedEndpoint, error) {
	if r.locator != nil {
		coord, err := r.locator.CurrentLocation(ctx)
		if err == nil && coord.Valid() {
			return models.ResolvedEndpoint{Coord: coord, Label: CurrentLocationLabel}, nil
		}
		r.logger.Warn("current location unavailable", "error", err)
	}

	if r.opts.FallbackCenter != nil {
		c := *r.opts.FallbackCenter
		return models.ResolvedEndpoint{Coord: c, Label: CoordinateLabel(c)}, nil
	}

	return models.ResolvedEndpoint{}, apperr.EndpointNotFound("current location unavailable")
}

// CoordinateLabel formats a coordinate as "Location (lat, lng)" with 4 decimals
func CoordinateLabel(c models.Coordinate) string {
	return fmt.Sprintf("Location (%.4f, %.4f)", c.Lat, c.Lng)
}
