package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/singleflight"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/cache"
	"github.com/passbi/passbi_trip/internal/db"
	"github.com/passbi/passbi_trip/internal/favorites"
	"github.com/passbi/passbi_trip/internal/middleware"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/resolve"
	"github.com/passbi/passbi_trip/internal/trip"
)

// SessionHeader identifies a client view whose searches supersede each other
const SessionHeader = "X-Session-ID"

// Deps are the collaborators of the HTTP handlers. Cache, DB and Favorites may be nil.
type Deps struct {
	Planner        *trip.Planner
	Cache          *cache.Store
	DB             *pgxpool.Pool
	Favorites      *favorites.Store
	NearbyRadiusKm float64

	SessionCacheSize int
	SessionTTL       time.Duration
	// StationRetry is how long a failed station load is remembered before the next attempt
	StationRetry time.Duration
}

// Handler serves the trip gateway API
type Handler struct {
	planner        *trip.Planner
	cache          *cache.Store
	pool           *pgxpool.Pool
	favorites      *favorites.Store
	nearbyRadiusKm float64
	sessions       gcache.Cache
	val            *validator.Validate
	logger         *slog.Logger

	stationLoads singleflight.Group
	stationRetry time.Duration
	loadMu       sync.Mutex
	loadErr      error
	loadFailedAt time.Time
	now          func() time.Time
}

// NewHandler creates the API handlers
func NewHandler(deps Deps, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.NearbyRadiusKm <= 0 {
		deps.NearbyRadiusKm = 1.5
	}
	if deps.SessionCacheSize <= 0 {
		deps.SessionCacheSize = 10000
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 30 * time.Minute
	}
	if deps.StationRetry <= 0 {
		deps.StationRetry = 30 * time.Second
	}

	planner := deps.Planner
	sessions := gcache.New(deps.SessionCacheSize).
		LRU().
		Expiration(deps.SessionTTL).
		LoaderFunc(func(key interface{}) (interface{}, error) {
			return planner.NewSession(), nil
		}).
		Build()

	return &Handler{
		planner:        planner,
		cache:          deps.Cache,
		pool:           deps.DB,
		favorites:      deps.Favorites,
		nearbyRadiusKm: deps.NearbyRadiusKm,
		sessions:       sessions,
		val:            validator.New(),
		logger:         logger.With("component", "api"),
		stationRetry:   deps.StationRetry,
		now:            time.Now,
	}
}

// Register mounts the routes on the app
func (h *Handler) Register(app *fiber.App) {
	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Post("/trips/plan", h.PlanTrip)
	v1.Get("/stations", h.Stations)
	v1.Get("/stations/nearby", h.NearbyStations)
	v1.Get("/stations/:name/lines", h.StationLines)
	v1.Get("/stations/:name/arrivals", h.StationArrivals)
	v1.Get("/lines", h.Lines)
	v1.Get("/lines/:kind/:id", h.LineStations)

	if h.favorites != nil {
		v1.Get("/favorites", h.ListFavorites)
		v1.Post("/favorites", h.SaveFavorite)
		v1.Get("/favorites/:id", h.GetFavorite)
		v1.Delete("/favorites/:id", h.DeleteFavorite)
	}
}

// PlanRequest is the body of POST /v1/trips/plan
type PlanRequest struct {
	Origin      models.EndpointJSON `json:"origin"`
	Destination models.EndpointJSON `json:"destination"`
}

// PlanResponse is a plan plus its overlay as GeoJSON
type PlanResponse struct {
	*trip.Plan
	GeoJSON *geojson.FeatureCollection `json:"geojson"`
}

// PlanTrip handles POST /v1/trips/plan
func (h *Handler) PlanTrip(c *fiber.Ctx) error {
	var body PlanRequest
	if err := c.BodyParser(&body); err != nil {
		return apperr.Validation(fmt.Sprintf("invalid request body: %v", err))
	}

	origin, originFix, err := body.Origin.Endpoint()
	if err != nil {
		return apperr.Validation(fmt.Sprintf("origin: %v", err))
	}
	destination, destinationFix, err := body.Destination.Endpoint()
	if err != nil {
		return apperr.Validation(fmt.Sprintf("destination: %v", err))
	}

	fix, err := deviceFix(originFix, destinationFix)
	if err != nil {
		return err
	}

	req := trip.Request{Origin: origin, Destination: destination}
	// The caller's last known fix stands in for the device location
	if fix != nil {
		req.Locator = resolve.FixedLocator(fix)
	}

	// Without an index station names miss and go to the geocoder
	ctx := c.UserContext()
	_ = h.ensureStations(ctx)

	session, err := h.session(c)
	if err != nil {
		return err
	}

	plan, err := session.Plan(ctx, req)
	if err != nil {
		return err
	}

	c.Locals(middleware.LocalCacheHit, plan.FromCache)
	return c.JSON(PlanResponse{
		Plan:    plan,
		GeoJSON: plan.Overlay.FeatureCollection(),
	})
}

// session returns the search session named by the request header, or a fresh one
func (h *Handler) session(c *fiber.Ctx) (*trip.Session, error) {
	id := strings.TrimSpace(c.Get(SessionHeader))
	if id == "" {
		return h.planner.NewSession(), nil
	}
	c.Locals(middleware.LocalSessionID, id)

	v, err := h.sessions.Get(id)
	if err != nil {
		return nil, apperr.Internal("failed to load session", err)
	}
	return v.(*trip.Session), nil
}

// deviceFix returns the single device location carried by the request.
// Both endpoints may carry one, but they must agree.
func deviceFix(origin, destination *models.Coordinate) (*models.Coordinate, error) {
	switch {
	case origin == nil:
		return destination, nil
	case destination == nil || *origin == *destination:
		return origin, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf(
			"origin and destination report different current locations (%s and %s)", origin, destination))
	}
}

// ensureStations loads the index on first use if startup could not.
// Concurrent callers share one load, and a failure is returned as is until stationRetry has passed.
func (h *Handler) ensureStations(ctx context.Context) error {
	if h.planner.Index().IsLoaded() {
		return nil
	}

	h.loadMu.Lock()
	if h.loadErr != nil && h.now().Sub(h.loadFailedAt) < h.stationRetry {
		err := h.loadErr
		h.loadMu.Unlock()
		return err
	}
	h.loadMu.Unlock()

	_, err, _ := h.stationLoads.Do("stations", func() (interface{}, error) {
		_, err := h.planner.LoadStations(ctx)

		h.loadMu.Lock()
		defer h.loadMu.Unlock()
		if err != nil {
			h.loadErr = err
			h.loadFailedAt = h.now()
			h.logger.Warn("station index unavailable", "error", err, "retry_in", h.stationRetry)
			return nil, err
		}
		h.loadErr = nil
		return nil, nil
	})
	return err
}

// StationsResponse lists the indexed stations
type StationsResponse struct {
	Stations []models.Station `json:"stations"`
	Count    int              `json:"count"`
	BuiltAt  time.Time        `json:"built_at"`
}

// Stations handles GET /v1/stations
func (h *Handler) Stations(c *fiber.Ctx) error {
	if err := h.ensureStations(c.UserContext()); err != nil {
		return err
	}

	snap := h.planner.Index().Snapshot()
	list := snap.Stations()
	if list == nil {
		list = []models.Station{}
	}

	return c.JSON(StationsResponse{
		Stations: list,
		Count:    len(list),
		BuiltAt:  snap.BuiltAt(),
	})
}

// NearbyStations handles GET /v1/stations/nearby?lat=&lng=&radius_km=
func (h *Handler) NearbyStations(c *fiber.Ctx) error {
	at, err := parseCoordinate(c.Query("lat"), c.Query("lng"))
	if err != nil {
		return apperr.Validation(err.Error())
	}

	radius := h.nearbyRadiusKm
	if s := c.Query("radius_km"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius <= 0 || radius > 20 {
			return apperr.Validation("invalid radius_km (must be between 0 and 20)")
		}
	}

	list, err := h.planner.NearbyStations(c.UserContext(), at, radius)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Station{}
	}

	return c.JSON(fiber.Map{
		"stations":  list,
		"count":     len(list),
		"radius_km": radius,
	})
}

// StationLines handles GET /v1/stations/:name/lines
func (h *Handler) StationLines(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || strings.TrimSpace(name) == "" {
		return apperr.Validation("invalid station name")
	}

	lines, err := h.planner.StationLines(c.UserContext(), name)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"station": name,
		"lines":   lines,
	})
}

// StationArrivals handles GET /v1/stations/:name/arrivals?kind=
func (h *Handler) StationArrivals(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil || strings.TrimSpace(name) == "" {
		return apperr.Validation("invalid station name")
	}
	kind, err := parseStationKind(c.Query("kind"))
	if err != nil {
		return err
	}

	arrivals, err := h.planner.Arrivals(c.UserContext(), name, kind)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"station":  name,
		"arrivals": arrivals,
		"count":    len(arrivals),
	})
}

// Lines handles GET /v1/lines?kind=
func (h *Handler) Lines(c *fiber.Ctx) error {
	kind, err := parseStationKind(c.Query("kind"))
	if err != nil {
		return err
	}

	lines, err := h.planner.Lines(c.UserContext(), kind)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"lines": lines,
		"count": len(lines),
	})
}

// LineStations handles GET /v1/lines/:kind/:id
func (h *Handler) LineStations(c *fiber.Ctx) error {
	kind, err := parseStationKind(c.Params("kind"))
	if err != nil || kind == "" {
		return apperr.Validation("line kind must be metro or bus")
	}
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil || strings.TrimSpace(id) == "" {
		return apperr.Validation("invalid line id")
	}

	line, err := h.planner.LineStations(c.UserContext(), kind, id)
	if err != nil {
		return err
	}
	return c.JSON(line)
}

// parseStationKind accepts "metro", "bus" or nothing
func parseStationKind(s string) (models.StationKind, error) {
	switch k := models.StationKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", models.KindMetro, models.KindBus:
		return k, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown kind %q (must be metro or bus)", s))
	}
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.UserContext()
	checks := fiber.Map{}
	healthy := true

	if h.pool != nil {
		checks["database"] = "ok"
		if err := db.HealthCheck(ctx, h.pool); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
	}

	if h.cache != nil {
		checks["redis"] = "ok"
		if err := h.cache.HealthCheck(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
		checks["redis_pool"] = h.cache.Stats()
	}

	index := h.planner.Index()
	checks["stations"] = index.Len()

	status := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	} else if !index.IsLoaded() {
		status = "degraded"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

// ListFavorites handles GET /v1/favorites?kind=
func (h *Handler) ListFavorites(c *fiber.Ctx) error {
	var kind favorites.Kind
	if s := c.Query("kind"); s != "" {
		k, err := favorites.ParseKind(s)
		if err != nil {
			return err
		}
		kind = k
	}

	list, err := h.favorites.List(c.UserContext(), kind)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"favorites": list,
		"count":     len(list),
	})
}

// FavoriteRequest is the body of POST /v1/favorites
type FavoriteRequest struct {
	Kind    string          `json:"kind" validate:"required,oneof=station place route"`
	Name    string          `json:"name" validate:"required,max=200"`
	Payload json.RawMessage `json:"payload"`
}

// SaveFavorite handles POST /v1/favorites
func (h *Handler) SaveFavorite(c *fiber.Ctx) error {
	var req FavoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(fmt.Sprintf("invalid request body: %v", err))
	}
	if err := h.val.Struct(req); err != nil {
		return validationError(err)
	}

	saved, err := h.favorites.Save(c.UserContext(), favorites.Favorite{
		Kind:    favorites.Kind(req.Kind),
		Name:    req.Name,
		Payload: req.Payload,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(saved)
}

// GetFavorite handles GET /v1/favorites/:id
func (h *Handler) GetFavorite(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid favorite id")
	}

	f, err := h.favorites.Get(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(f)
}

// DeleteFavorite handles DELETE /v1/favorites/:id
func (h *Handler) DeleteFavorite(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.Validation("invalid favorite id")
	}

	if err := h.favorites.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ErrorHandler renders handler errors as JSON, mapping error kinds to status codes
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error":   "http_error",
				"message": fe.Message,
			})
		}

		code := apperr.StatusOf(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "path", c.Path(), "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   apperr.GetKind(err).String(),
			"message": apperr.Message(err),
		})
	}
}

// validationError turns validator failures into a single Validation error
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

// NotFound is the fallback handler for unknown endpoints
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "http_error",
		"message": "endpoint not found",
	})
}

// parseCoordinate parses and range-checks a lat/lng pair
func parseCoordinate(latStr, lngStr string) (models.Coordinate, error) {
	if latStr == "" || lngStr == "" {
		return models.Coordinate{}, fmt.Errorf("missing required parameters: lat and lng")
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid latitude: %w", err)
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid longitude: %w", err)
	}

	c := models.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return models.Coordinate{}, fmt.Errorf("latitude must be between -90 and 90 and longitude between -180 and 180")
	}

	return c, nil
}
