package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bluele/gcache"
	"golang.org/x/time/rate"

	"github.com/passbi/passbi_trip/internal/apperr"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Config holds the geocoder settings
type Config struct {
	BaseURL     string
	UserAgent   string
	Viewbox     string // "minLng,minLat,maxLng,maxLat"; results are bounded to it
	Limit       int
	Language    string
	QuerySuffix string // appended to every query, e.g. ", Riyadh"
	Timeout     time.Duration

	RatePerSecond float64
	CacheSize     int
	CacheTTL      time.Duration
}

// Client queries a Nominatim-compatible search endpoint
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	cache   gcache.Cache
	logger  *slog.Logger
}

// NewClient creates a geocoder client.
// Requests are throttled to RatePerSecond and results are cached in-process.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "PassBiTrip/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	c := &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "geocoder"),
	}

	if cfg.CacheSize > 0 {
		builder := gcache.New(cfg.CacheSize).LRU()
		if cfg.CacheTTL > 0 {
			builder = builder.Expiration(cfg.CacheTTL)
		}
		c.cache = builder.Build()
	}

	return c
}

// Search returns geocoder hits for a query, highest ranked first.
// Transport failures, non-200 answers and undecodable bodies are reported as
// GeocoderUnavailable. An empty slice means the geocoder found nothing.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = c.decorate(query)
	key := c.cacheKey(query)

	if cached, ok := c.fromCache(key); ok {
		c.logger.Debug("geocode cache hit", "query", query, "results", len(cached))
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.GeocoderUnavailable(fmt.Errorf("waiting for rate limiter: %w", err))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.cfg.Limit))
	if c.cfg.Viewbox != "" {
		params.Set("bounded", "1")
		params.Set("viewbox", c.cfg.Viewbox)
	}
	if c.cfg.Language != "" {
		params.Set("accept-language", c.cfg.Language)
	}

	reqURL := fmt.Sprintf("%s/search?%s", strings.TrimRight(c.cfg.BaseURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.GeocoderUnavailable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("geocoder request failed", "error", err)
		return nil, apperr.GeocoderUnavailable(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("geocoder upstream error", "status", resp.StatusCode)
		return nil, apperr.GeocoderUnavailable(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var raw []Result
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.logger.Error("failed to decode geocoder payload", "error", err)
		return nil, apperr.GeocoderUnavailable(fmt.Errorf("decoding response: %w", err))
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		// Ensure we have valid data before returning the hit
		if strings.TrimSpace(r.DisplayName) == "" {
			continue
		}
		results = append(results, r)
	}

	c.store(key, results)
	c.logger.Debug("geocode", "query", query, "results", len(results))

	return results, nil
}

func (c *Client) decorate(query string) string {
	query = strings.TrimSpace(query)
	suffix := c.cfg.QuerySuffix
	if suffix == "" {
		return query
	}
	if strings.HasSuffix(strings.ToLower(query), strings.ToLower(strings.TrimSpace(suffix))) {
		return query
	}
	return query + suffix
}

func (c *Client) cacheKey(query string) string {
	return strings.ToLower(query) + "|" + c.cfg.Language
}

func (c *Client) fromCache(key string) ([]Result, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, err := c.cache.Get(key)
	if err != nil {
		return nil, false
	}
	results, ok := v.([]Result)
	if !ok {
		return nil, false
	}
	return append([]Result(nil), results...), true
}

func (c *Client) store(key string, results []Result) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(key, append([]Result(nil), results...)); err != nil {
		c.logger.Warn("geocode cache set failed", "error", err)
	}
}
