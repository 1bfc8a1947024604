// Package trip runs the trip pipeline: resolve both endpoints, fetch a route,
// describe its legs and build the map overlay.
package trip

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/describe"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/overlay"
	"github.com/passbi/passbi_trip/internal/resolve"
	"github.com/passbi/passbi_trip/internal/stations"
)

// Transit is the remote planner
type Transit interface {
	Stations(ctx context.Context) ([]models.Station, error)
	NearbyStations(ctx context.Context, at models.Coordinate, radiusKm float64) ([]models.Station, error)
	FindRoute(ctx context.Context, start, end models.Coordinate) (models.Route, error)
	SearchStation(ctx context.Context, name string) (models.StationLines, error)
	Arrivals(ctx context.Context, name string, kind models.StationKind) ([]models.Arrival, error)
	Lines(ctx context.Context, kind models.StationKind) ([]models.Line, error)
	LineStations(ctx context.Context, kind models.StationKind, line string) ([]models.LineDirection, error)
}

// Options tunes the planner
type Options struct {
	Language        string
	RouteCacheTTL   time.Duration
	StationCacheTTL time.Duration
	LockTTL         time.Duration
	Overlay         overlay.Options
}

// Request is one search action
type Request struct {
	Origin      models.Endpoint
	Destination models.Endpoint
	// Locator overrides the resolver's location source for this request
	Locator resolve.Locator
}

// Plan is the full result of a search action
type Plan struct {
	Generation   uint64                  `json:"generation"`
	Origin       models.ResolvedEndpoint `json:"origin"`
	Destination  models.ResolvedEndpoint `json:"destination"`
	Route        models.Route            `json:"route"`
	Legs         []describe.Description  `json:"legs"`
	Overlay      overlay.Overlay         `json:"overlay"`
	TotalMinutes int                     `json:"total_minutes"`
	FromCache    bool                    `json:"from_cache"`
}

// Planner owns the station index of a view session and runs searches against it
type Planner struct {
	index    *stations.Index
	transit  Transit
	resolver *resolve.Resolver
	cache    *cache.Store
	opts     Options
	logger   *slog.Logger

	session *Session
}

// New creates a planner. store may be nil to disable caching.
func New(index *stations.Index, transit Transit, resolver *resolve.Resolver, store *cache.Store, opts Options, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}

	p := &Planner{
		index:    index,
		transit:  transit,
		resolver: resolver,
		cache:    store,
		opts:     opts,
		logger:   logger.With("component", "planner"),
	}
	p.session = p.NewSession()
	return p
}

// Index returns the planner's station index
func (p *Planner) Index() *stations.Index {
	return p.index
}

// LoadStations populates the station index, preferring a fresh cached snapshot.
// When the planner cannot be reached a stale cached snapshot is used instead.
func (p *Planner) LoadStations(ctx context.Context) (*stations.Snapshot, error) {
	var cached *cache.Entry[[]models.Station]
	if p.cache != nil {
		entry, err := p.cache.GetStations(ctx)
		if err != nil {
			p.logger.Warn("station cache read failed", "error", err)
		}
		cached = entry
		if cached != nil && cached.Fresh(p.opts.StationCacheTTL) {
			p.logger.Info("loading stations from cache", "stored_at", cached.StoredAt)
			return p.index.Build(cached.Value), nil
		}
	}

	fetched, err := p.transit.Stations(ctx)
	if err != nil {
		if cached != nil {
			p.logger.Warn("station fetch failed, using stale cache", "error", err, "stored_at", cached.StoredAt)
			return p.index.Build(cached.Value), nil
		}
		return nil, fmt.Errorf("failed to load stations: %w", err)
	}

	cleaned := stations.Clean(fetched, p.logger)
	snap := p.index.Build(cleaned)

	if p.cache != nil {
		if err := p.cache.SetStations(ctx, cleaned, p.opts.StationCacheTTL*2); err != nil {
			p.logger.Warn("station cache write failed", "error", err)
		}
	}

	return snap, nil
}

// Plan runs a search on the planner's own session.
// A search that is overtaken by a newer one fails with KindStale.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	return p.session.Plan(ctx, req)
}

// NearbyStations asks the remote planner for stations near a point and falls
// back to the local index when it cannot be reached
func (p *Planner) NearbyStations(ctx context.Context, at models.Coordinate, radiusKm float64) ([]models.Station, error) {
	if !at.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("coordinate %s out of range", at))
	}

	result, err := p.transit.NearbyStations(ctx, at, radiusKm)
	if err == nil {
		return result, nil
	}
	if !apperr.Is(err, apperr.KindNetwork) {
		return nil, err
	}

	p.logger.Warn("nearby stations unavailable, using local index", "error", err)
	if radiusKm <= 0 {
		radiusKm = 1.5
	}
	return stations.Nearby(p.index.Snapshot(), at, radiusKm*1000, 0), nil
}

// StationLines returns the lines serving a station, addressed by display name
func (p *Planner) StationLines(ctx context.Context, name string) (models.StationLines, error) {
	raw := name
	if st, ok := p.index.Lookup(name); ok && st.RawName != "" {
		raw = st.RawName
	}
	return p.transit.SearchStation(ctx, raw)
}

// Arrivals returns the departure board of a station, addressed by display name.
// An empty kind uses the indexed station's kind, or bus for unknown stations.
func (p *Planner) Arrivals(ctx context.Context, name string, kind models.StationKind) ([]models.Arrival, error) {
	raw := name
	st, ok := p.index.Lookup(name)
	if ok && st.RawName != "" {
		raw = st.RawName
	}
	if kind == "" {
		kind = models.KindBus
		if ok {
			kind = st.Kind
		}
	}
	return p.transit.Arrivals(ctx, raw, kind)
}

// Lines lists the metro and bus lines with display names and colours.
// An empty kind lists both. If only one kind can be fetched it is returned alone.
func (p *Planner) Lines(ctx context.Context, kind models.StationKind) ([]models.Line, error) {
	if kind != "" {
		lines, err := p.transit.Lines(ctx, kind)
		if err != nil {
			return nil, err
		}
		return decorateLines(lines), nil
	}

	var (
		metro, bus       []models.Line
		metroErr, busErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		metro, metroErr = p.transit.Lines(ctx, models.KindMetro)
		return nil
	})
	g.Go(func() error {
		bus, busErr = p.transit.Lines(ctx, models.KindBus)
		return nil
	})
	_ = g.Wait()

	switch {
	case metroErr != nil && busErr != nil:
		return nil, metroErr
	case metroErr != nil:
		p.logger.Warn("metro lines unavailable", "error", metroErr)
	case busErr != nil:
		p.logger.Warn("bus lines unavailable", "error", busErr)
	}

	return decorateLines(append(metro, bus...)), nil
}

// LineStations returns a line with its stops
func (p *Planner) LineStations(ctx context.Context, kind models.StationKind, id string) (models.LineStations, error) {
	directions, err := p.transit.LineStations(ctx, kind, id)
	if err != nil {
		return models.LineStations{}, err
	}
	return models.LineStations{
		Line:       decorateLine(models.Line{ID: id, Kind: kind}),
		Directions: directions,
	}, nil
}

func decorateLines(lines []models.Line) []models.Line {
	out := make([]models.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, decorateLine(l))
	}
	return out
}

// decorateLine fills in the name and colour a line is listed with
func decorateLine(l models.Line) models.Line {
	if l.Kind == models.KindMetro {
		l.Name = describe.LineName(l.ID)
		l.Color = describe.MetroLineColor(l.ID).Hex
		return l
	}
	l.Name = "Bus " + l.ID
	l.Color = describe.BusHex
	return l
}

// run executes the pipeline. stale reports whether a newer search has started.
func (p *Planner) run(ctx context.Context, req Request, gen uint64, stale func() bool) (*Plan, error) {
	startTime := time.Now()

	// Pin the snapshot so a concurrent rebuild does not change this search
	snap := p.index.Snapshot()
	resolver := p.resolver.WithStations(snap)
	if req.Locator != nil {
		resolver = resolver.WithLocator(req.Locator)
	}

	from, to, err := resolver.ResolvePair(ctx, req.Origin, req.Destination)
	if err != nil {
		return nil, err
	}
	if stale() {
		return nil, apperr.Stale().WithOp("resolve")
	}

	route, fromCache, err := p.findRoute(ctx, from.Coord, to.Coord)
	if err != nil {
		return nil, err
	}
	if stale() {
		return nil, apperr.Stale().WithOp("route")
	}

	plan := &Plan{
		Generation:   gen,
		Origin:       from,
		Destination:  to,
		Route:        route,
		Legs:         describe.DescribeRoute(route),
		Overlay:      overlay.Build(route, snap, p.opts.Overlay),
		TotalMinutes: route.TotalMinutes(),
		FromCache:    fromCache,
	}

	p.logger.Info("trip planned",
		"generation", gen,
		"origin", from.Label,
		"destination", to.Label,
		"legs", len(route.Legs),
		"total_minutes", plan.TotalMinutes,
		"from_cache", fromCache,
		"duration", time.Since(startTime))

	return plan, nil
}

// findRoute asks the remote planner, going through the route cache when one is configured
func (p *Planner) findRoute(ctx context.Context, from, to models.Coordinate) (models.Route, bool, error) {
	if p.cache == nil || p.opts.RouteCacheTTL <= 0 {
		route, err := p.transit.FindRoute(ctx, from, to)
		return route, false, err
	}

	key := cache.RouteKey(from, to, p.opts.Language)

	if entry := p.cachedRoute(ctx, key); entry != nil {
		return entry.Value, true, nil
	}

	// Only one caller per key asks the planner; the others wait for its answer
	acquired, err := p.cache.AcquireLock(ctx, key, p.opts.LockTTL)
	if err != nil {
		p.logger.Warn("route lock failed", "key", key, "error", err)
	}
	if err == nil && !acquired {
		entry, err := p.cache.WaitForRoute(ctx, key, p.opts.LockTTL)
		if err == nil && entry != nil && entry.Fresh(p.opts.RouteCacheTTL) {
			return entry.Value, true, nil
		}
	}
	if acquired {
		defer func() {
			if err := p.cache.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
				p.logger.Warn("route lock release failed", "key", key, "error", err)
			}
		}()
	}

	route, err := p.transit.FindRoute(ctx, from, to)
	if err != nil {
		return models.Route{}, false, err
	}

	if err := p.cache.SetRoute(ctx, key, route, p.opts.RouteCacheTTL); err != nil {
		p.logger.Warn("route cache write failed", "key", key, "error", err)
	}

	return route, false, nil
}

func (p *Planner) cachedRoute(ctx context.Context, key string) *cache.Entry[models.Route] {
	entry, err := p.cache.GetRoute(ctx, key)
	if err != nil {
		p.logger.Warn("route cache read failed", "key", key, "error", err)
		return nil
	}
	if entry == nil || !entry.Fresh(p.opts.RouteCacheTTL) {
		return nil
	}
	return entry
}

// Session is one view's sequence of searches. Only the latest search may deliver a result.
type Session struct {
	planner    *Planner
	generation atomic.Uint64
}

// NewSession starts a new search sequence sharing the planner's index and clients
func (p *Planner) NewSession() *Session {
	return &Session{planner: p}
}

// Plan runs a search. If another search on the same session starts before this
// one finishes, this one fails with KindStale and its result is dropped.
func (s *Session) Plan(ctx context.Context, req Request) (*Plan, error) {
	gen := s.generation.Add(1)
	stale := func() bool { return s.generation.Load() != gen }

	plan, err := s.planner.run(ctx, req, gen, stale)
	if err != nil {
		return nil, err
	}
	if stale() {
		return nil, apperr.Stale()
	}
	return plan, nil
}

// Generation returns the number of searches started on the session
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}
