package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) (*Client, *int32) {
	t.Helper()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	return NewClient(cfg, nil), &hits
}

func TestSearchSendsBoundedQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "King Saud University, Riyadh", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "1", q.Get("bounded"))
		assert.Equal(t, "46.5,24.5,47.0,25.0", q.Get("viewbox"))
		assert.Equal(t, "ar", q.Get("accept-language"))
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"display_name": "King Saud University", "lat": "24.72", "lon": "46.62", "type": "university"},
			{"display_name": "", "lat": "24.0", "lon": "46.0"}
		]`))
	}, Config{
		UserAgent:   "TestAgent/1.0",
		Viewbox:     "46.5,24.5,47.0,25.0",
		Language:    "ar",
		QuerySuffix: ", Riyadh",
	})

	results, err := client.Search(context.Background(), "King Saud University")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.Coordinate{Lat: 24.72, Lng: 46.62}, results[0].Coordinate())
	assert.Equal(t, "university", results[0].Description())
}

func TestSearchDoesNotRepeatSuffix(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Olaya, riyadh", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[]`))
	}, Config{QuerySuffix: ", Riyadh"})

	results, err := client.Search(context.Background(), "Olaya, riyadh")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "Malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"not": "a list"`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler, Config{})
			_, err := client.Search(context.Background(), "anything")
			assert.True(t, apperr.Is(err, apperr.KindGeocoderUnavailable))
		})
	}
}

func TestSearchUnreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, nil)
	_, err := client.Search(context.Background(), "anything")
	assert.True(t, apperr.Is(err, apperr.KindGeocoderUnavailable))
}

func TestSearchCachesResults(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"display_name": "Olaya", "lat": "24.70", "lon": "46.68"}]`))
	}, Config{CacheSize: 10, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		results, err := client.Search(context.Background(), "Olaya")
		require.NoError(t, err)
		require.Len(t, results, 1)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestSearchCancelledWhileThrottled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, Config{RatePerSecond: 0.001})

	_, err := client.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Search(ctx, "second")
	assert.True(t, apperr.Is(err, apperr.KindGeocoderUnavailable))
}

func TestResultCoordinateParsing(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected models.Coordinate
		ok       bool
	}{
		{"Valid", Result{Lat: "24.72", Lon: "46.62"}, models.Coordinate{Lat: 24.72, Lng: 46.62}, true},
		{"Bad latitude", Result{Lat: "abc", Lon: "46.62"}, models.Coordinate{Lat: 0, Lng: 46.62}, false},
		{"Both missing", Result{}, models.Coordinate{}, false},
		{"Out of range", Result{Lat: "124.0", Lon: "46.62"}, models.Coordinate{Lat: 124, Lng: 46.62}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.result.ParsedCoordinate()
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, tt.result.Coordinate())
		})
	}
}
