package transit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/models"
)

const (
	// DefaultNearbyRadiusKm is the radius used by the nearby-stations screen
	DefaultNearbyRadiusKm = 1.5

	arabicPrefix = "ar/"
)

// Config holds the planner client settings
type Config struct {
	BaseURL  string
	Language string // "ar" routes every call through the ar/ prefix
	Timeout  time.Duration
}

// Client talks to the remote transit planner
type Client struct {
	baseURL    string
	language   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a planner client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: strings.ToLower(strings.TrimSpace(cfg.Language)),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.With("component", "planner_client"),
	}
}

// Stations fetches the full station list
func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var raw []apiStation
	if err := c.do(ctx, http.MethodGet, "api/stations", nil, &raw); err != nil {
		return nil, err
	}

	result := make([]models.Station, 0, len(raw))
	for _, s := range raw {
		result = append(result, s.toModel())
	}

	c.logger.Debug("fetched stations", "count", len(result))
	return result, nil
}

// NearbyStations returns the stations the planner considers within radiusKm of a point.
// A non-positive radius uses DefaultNearbyRadiusKm.
func (c *Client) NearbyStations(ctx context.Context, at models.Coordinate, radiusKm float64) ([]models.Station, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}

	var raw []apiStation
	body := nearbyRequest{Lat: at.Lat, Lng: at.Lng, Radius: radiusKm}
	if err := c.do(ctx, http.MethodPost, "nearbystations", body, &raw); err != nil {
		return nil, err
	}

	result := make([]models.Station, 0, len(raw))
	for _, s := range raw {
		result = append(result, s.toModel())
	}
	return result, nil
}

// FindRoute asks the planner for a route between two coordinates.
// The first route is returned. An empty route list fails with NoRouteFound,
// an error payload with PlannerRejected, and anything transport related
// (timeouts, non-2xx, undecodable bodies) with Network.
func (c *Client) FindRoute(ctx context.Context, start, end models.Coordinate) (models.Route, error) {
	body := routeRequest{
		StartLat: start.Lat,
		StartLng: start.Lng,
		EndLat:   end.Lat,
		EndLng:   end.Lng,
	}

	var payload map[string]json.RawMessage
	if err := c.do(ctx, http.MethodPost, "route_from_coords", body, &payload); err != nil {
		return models.Route{}, err
	}

	if rawRoutes, ok := payload["routes"]; ok {
		var routes []apiRoute
		if err := json.Unmarshal(rawRoutes, &routes); err != nil {
			return models.Route{}, apperr.Network(fmt.Errorf("decoding routes: %w", err))
		}
		if len(routes) == 0 {
			return models.Route{}, apperr.NoRouteFound()
		}

		route := routes[0].toModel()
		c.logger.Debug("route found",
			"start", start.String(),
			"end", end.String(),
			"legs", len(route.Legs),
			"total_seconds", route.TotalSeconds)
		return route, nil
	}

	if rawErr, ok := payload["error"]; ok {
		return models.Route{}, apperr.PlannerRejected(errorMessage(rawErr))
	}

	return models.Route{}, apperr.Network(fmt.Errorf("response has neither routes nor error"))
}

// SearchStation returns the metro and bus lines serving a station.
// name should be the station's raw name as the planner knows it.
func (c *Client) SearchStation(ctx context.Context, name string) (models.StationLines, error) {
	var resp searchStationResponse
	if err := c.do(ctx, http.MethodPost, "searchstation", searchStationRequest{StationName: name}, &resp); err != nil {
		return models.StationLines{}, err
	}

	if resp.Error != nil {
		return models.StationLines{}, apperr.PlannerRejected(*resp.Error)
	}

	return models.StationLines{
		MetroLines: toLines(resp.MetroLines),
		BusLines:   toLines(resp.BusLines),
	}, nil
}

// Arrivals returns the upcoming departures at a station.
// kind selects the metro or bus board.
func (c *Client) Arrivals(ctx context.Context, name string, kind models.StationKind) ([]models.Arrival, error) {
	p := "bus_arrivals"
	if kind == models.KindMetro {
		p = "metro_arrivals"
	}

	var payload map[string]json.RawMessage
	if err := c.do(ctx, http.MethodPost, p, searchStationRequest{StationName: name}, &payload); err != nil {
		return nil, err
	}

	if rawErr, ok := payload["error"]; ok {
		return nil, apperr.PlannerRejected(errorMessage(rawErr))
	}
	rawArrivals, ok := payload["arrivals"]
	if !ok {
		return nil, apperr.Network(fmt.Errorf("response has neither arrivals nor error"))
	}

	var raw []apiArrival
	if err := json.Unmarshal(rawArrivals, &raw); err != nil {
		return nil, apperr.Network(fmt.Errorf("decoding arrivals: %w", err))
	}

	result := make([]models.Arrival, 0, len(raw))
	for _, a := range raw {
		result = append(result, a.toModel())
	}
	return result, nil
}

// Lines returns the ids of every metro or bus line
func (c *Client) Lines(ctx context.Context, kind models.StationKind) ([]models.Line, error) {
	p := "buslines"
	if kind == models.KindMetro {
		p = "mtrlines"
	}

	var resp linesResponse
	if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}

	ids := resp.Lines.ids()
	result := make([]models.Line, 0, len(ids))
	for _, id := range ids {
		result = append(result, models.Line{ID: id, Kind: kind})
	}

	c.logger.Debug("fetched lines", "kind", kind, "count", len(result))
	return result, nil
}

// LineStations returns the stops of a line.
// Metro lines come back as one stop list, bus lines as one list per direction
// in the order the planner sends them.
func (c *Client) LineStations(ctx context.Context, kind models.StationKind, line string) ([]models.LineDirection, error) {
	p := "viewbus"
	if kind == models.KindMetro {
		p = "viewmtr"
	}

	var payload orderedDirections
	if err := c.do(ctx, http.MethodPost, p, viewLineRequest{Line: line}, &payload); err != nil {
		return nil, err
	}
	if payload.err != nil {
		return nil, apperr.PlannerRejected(*payload.err)
	}

	if kind == models.KindMetro {
		for _, d := range payload.directions {
			if d.Name == "stations" {
				return []models.LineDirection{{Stations: d.Stations}}, nil
			}
		}
		return nil, apperr.NotFound(fmt.Sprintf("metro line %s has no stations", line))
	}

	if len(payload.directions) == 0 {
		return nil, apperr.NotFound(fmt.Sprintf("bus line %s has no stations", line))
	}
	return payload.directions, nil
}

// path applies the language prefix to a planner path
func (c *Client) path(p string) string {
	p = strings.TrimLeft(p, "/")
	if c.language == "ar" && !strings.HasPrefix(p, arabicPrefix) {
		return arabicPrefix + p
	}
	return p
}

// do performs one JSON round trip. Every failure is reported as a Network error.
func (c *Client) do(ctx context.Context, method, p string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return apperr.Network(fmt.Errorf("encoding request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, c.path(p))

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return apperr.Network(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("planner request failed", "path", p, "error", err)
		return apperr.Network(fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("planner returned error status", "path", p, "status", resp.StatusCode)
		return apperr.Network(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Network(fmt.Errorf("decoding response: %w", err))
	}

	c.logger.Debug("planner call", "path", p, "duration", time.Since(startTime))
	return nil
}

func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
