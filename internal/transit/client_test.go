package transit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, language string, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Language: language, Timeout: 2 * time.Second}, nil)
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestFindRouteOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		kind    apperr.Kind
		message string
	}{
		{
			name:    "Empty routes",
			handler: respond(`{"routes": []}`),
			kind:    apperr.KindNoRouteFound,
		},
		{
			name:    "Null routes",
			handler: respond(`{"routes": null}`),
			kind:    apperr.KindNoRouteFound,
		},
		{
			name:    "Planner error",
			handler: respond(`{"error": "x"}`),
			kind:    apperr.KindPlannerRejected,
			message: "x",
		},
		{
			name: "Server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			kind: apperr.KindNetwork,
		},
		{
			name:    "Malformed body",
			handler: respond(`{"routes": [`),
			kind:    apperr.KindNetwork,
		},
		{
			name:    "Neither routes nor error",
			handler: respond(`{"status": "ok"}`),
			kind:    apperr.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", tt.handler)

			_, err := client.FindRoute(context.Background(),
				models.Coordinate{Lat: 24.70, Lng: 46.68},
				models.Coordinate{Lat: 24.72, Lng: 46.62})

			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.GetKind(err))
			if tt.message != "" {
				assert.Equal(t, tt.message, apperr.Message(err))
			}
		})
	}
}

func TestFindRouteParsesSegments(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/route_from_coords", r.URL.Path)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 24.70, body["start_lat"])
		assert.Equal(t, 46.68, body["start_lng"])
		assert.Equal(t, 24.72, body["end_lat"])
		assert.Equal(t, 46.62, body["end_lng"])

		respond(`{"routes": [
			{
				"total_time": 720,
				"segments": [
					{"type": "walk", "duration": 120, "distance": 80,
					 "from": {"lat": 24.701, "lng": 46.681}, "to": "Olaya"},
					{"type": "metro", "line": 2, "stations": ["Olaya", "KSU"], "duration": 600},
					{"type": "bus", "line": "150", "stations": [], "duration": 0}
				]
			},
			{"total_time": 9999, "segments": []}
		]}`)(w, r)
	})

	route, err := client.FindRoute(context.Background(),
		models.Coordinate{Lat: 24.70, Lng: 46.68},
		models.Coordinate{Lat: 24.72, Lng: 46.62})
	require.NoError(t, err)

	assert.Equal(t, 720.0, route.TotalSeconds)
	require.Len(t, route.Legs, 3)

	walk := route.Legs[0]
	assert.Equal(t, models.ModeWalk, walk.Mode)
	require.NotNil(t, walk.DistanceMeters)
	assert.Equal(t, 80.0, *walk.DistanceMeters)
	require.NotNil(t, walk.From)
	assert.True(t, walk.From.IsCoordinate())
	require.NotNil(t, walk.To)
	assert.Equal(t, "Olaya", walk.To.Station)

	metro := route.Legs[1]
	assert.Equal(t, models.ModeMetro, metro.Mode)
	assert.Equal(t, "2", metro.LineID)
	assert.Equal(t, []string{"Olaya", "KSU"}, metro.Stations)
	assert.Equal(t, 10, metro.DurationMinutes())

	bus := route.Legs[2]
	assert.Equal(t, models.ModeBus, bus.Mode)
	assert.Equal(t, "150", bus.LineID)
	assert.Empty(t, bus.Stations)
}

func TestFindRouteTimeout(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FindRoute(ctx, models.Coordinate{Lat: 1, Lng: 1}, models.Coordinate{Lat: 2, Lng: 2})
	assert.True(t, apperr.Is(err, apperr.KindNetwork))
}

func TestStations(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/stations", r.URL.Path)
		respond(`[
			{"value": "olaya", "label": "Olaya (Metro)", "type": "Metro", "lat": 24.70, "lng": 46.68},
			{"value": "kfr", "type": "bus", "lat": 24.71, "lng": 46.67}
		]`)(w, r)
	})

	got, err := client.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Olaya", got[0].DisplayName)
	assert.Equal(t, "Olaya (Metro)", got[0].RawName)
	assert.Equal(t, models.KindMetro, got[0].Kind)
	assert.Equal(t, "kfr", got[1].DisplayName)
	assert.Equal(t, models.KindBus, got[1].Kind)
}

func TestNearbyStations(t *testing.T) {
	client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nearbystations", r.URL.Path)

		var body nearbyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultNearbyRadiusKm, body.Radius)

		respond(`[{"name": "King Fahd (Bus)", "type": "bus", "lat": 24.71, "lng": 46.67, "distance": 420, "duration": 300}]`)(w, r)
	})

	got, err := client.NearbyStations(context.Background(), models.Coordinate{Lat: 24.7, Lng: 46.68}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "King Fahd", got[0].DisplayName)
	require.NotNil(t, got[0].DistanceMeters)
	assert.Equal(t, 420.0, *got[0].DistanceMeters)
	require.NotNil(t, got[0].WalkSeconds)
	assert.Equal(t, 300.0, *got[0].WalkSeconds)
}

func TestSearchStation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected models.StationLines
		kind     apperr.Kind
	}{
		{
			name:     "Lines found",
			body:     `{"metro_lines": ["Blue Line", 2], "bus_lines": ["150"]}`,
			expected: models.StationLines{MetroLines: []string{"Blue Line", "2"}, BusLines: []string{"150"}},
		},
		{
			name:     "No lines",
			body:     `{}`,
			expected: models.StationLines{MetroLines: []string{}, BusLines: []string{}},
		},
		{
			name: "Unknown station",
			body: `{"error": "Station not found"}`,
			kind: apperr.KindPlannerRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				var body searchStationRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Olaya (Metro)", body.StationName)
				respond(tt.body)(w, r)
			})

			got, err := client.SearchStation(context.Background(), "Olaya (Metro)")
			if tt.kind != apperr.KindUnknown {
				assert.True(t, apperr.Is(err, tt.kind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestArabicPathPrefix(t *testing.T) {
	tests := []struct {
		language string
		path     string
		expected string
	}{
		{"en", "api/stations", "api/stations"},
		{"", "/searchstation", "searchstation"},
		{"ar", "api/stations", "ar/api/stations"},
		{"AR", "route_from_coords", "ar/route_from_coords"},
		{"ar", "ar/searchstation", "ar/searchstation"},
		{"ar", "metro_arrivals", "ar/metro_arrivals"},
		{"ar", "viewbus", "ar/viewbus"},
	}

	for _, tt := range tests {
		t.Run(tt.language+"_"+tt.path, func(t *testing.T) {
			client := NewClient(Config{BaseURL: "http://planner", Language: tt.language}, nil)
			assert.Equal(t, tt.expected, client.path(tt.path))
		})
	}
}

func TestArabicRequestsHitPrefixedPath(t *testing.T) {
	client := newTestClient(t, "ar", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ar/api/stations", r.URL.Path)
		respond(`[]`)(w, r)
	})

	got, err := client.Stations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestArrivals(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.StationKind
		wantPath string
		body     string
		expected []models.Arrival
		errKind  apperr.Kind
	}{
		{
			name:     "Metro board",
			kind:     models.KindMetro,
			wantPath: "/metro_arrivals",
			body:     `{"arrivals": [{"line": 1, "destination": "KAFD", "minutes_until": 3}, {"line": "1", "destination": "Airport", "minutes_until": 7.2}]}`,
			expected: []models.Arrival{
				{Line: "1", Destination: "KAFD", MinutesUntil: 3},
				{Line: "1", Destination: "Airport", MinutesUntil: 8},
			},
		},
		{
			name:     "Empty bus board",
			kind:     models.KindBus,
			wantPath: "/bus_arrivals",
			body:     `{"arrivals": []}`,
			expected: []models.Arrival{},
		},
		{
			name:     "Unknown station",
			kind:     models.KindBus,
			wantPath: "/bus_arrivals",
			body:     `{"error": "Station not found"}`,
			errKind:  apperr.KindPlannerRejected,
		},
		{
			name:     "Unexpected payload",
			kind:     models.KindMetro,
			wantPath: "/metro_arrivals",
			body:     `{"status": "ok"}`,
			errKind:  apperr.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				var body searchStationRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "Olaya (Metro)", body.StationName)
				respond(tt.body)(w, r)
			})

			got, err := client.Arrivals(context.Background(), "Olaya (Metro)", tt.kind)
			if tt.errKind != apperr.KindUnknown {
				assert.True(t, apperr.Is(err, tt.errKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.StationKind
		wantPath string
		body     string
		expected []string
	}{
		{"Metro ids as string", models.KindMetro, "/mtrlines", `{"lines": "1,2, 3,,2"}`, []string{"1", "2", "3"}},
		{"Bus ids as array", models.KindBus, "/buslines", `{"lines": [150, "7", "10A"]}`, []string{"150", "7", "10A"}},
		{"No lines", models.KindBus, "/buslines", `{}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, tt.wantPath, r.URL.Path)
				respond(tt.body)(w, r)
			})

			got, err := client.Lines(context.Background(), tt.kind)
			require.NoError(t, err)

			ids := make([]string, 0, len(got))
			for _, l := range got {
				assert.Equal(t, tt.kind, l.Kind)
				ids = append(ids, l.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestLineStations(t *testing.T) {
	tests := []struct {
		name     string
		kind     models.StationKind
		wantPath string
		body     string
		expected []models.LineDirection
		errKind  apperr.Kind
	}{
		{
			name:     "Metro line",
			kind:     models.KindMetro,
			wantPath: "/viewmtr",
			body:     `{"stations": ["KAFD", "Olaya", "KSU"]}`,
			expected: []models.LineDirection{{Stations: []string{"KAFD", "Olaya", "KSU"}}},
		},
		{
			name:     "Bus directions keep their order",
			kind:     models.KindBus,
			wantPath: "/viewbus",
			body:     `{"Olaya": ["Olaya", "Batha"], "Batha": ["Batha", "Olaya"]}`,
			expected: []models.LineDirection{
				{Name: "Olaya", Stations: []string{"Olaya", "Batha"}},
				{Name: "Batha", Stations: []string{"Batha", "Olaya"}},
			},
		},
		{
			name:     "Ring bus",
			kind:     models.KindBus,
			wantPath: "/viewbus",
			body:     `{"Loop": ["A", "B", "A"]}`,
			expected: []models.LineDirection{{Name: "Loop", Stations: []string{"A", "B", "A"}}},
		},
		{
			name:     "Unknown line",
			kind:     models.KindBus,
			wantPath: "/viewbus",
			body:     `{"error": "Line not found"}`,
			errKind:  apperr.KindPlannerRejected,
		},
		{
			name:     "Empty metro line",
			kind:     models.KindMetro,
			wantPath: "/viewmtr",
			body:     `{}`,
			errKind:  apperr.KindNotFound,
		},
		{
			name:     "Not an object",
			kind:     models.KindMetro,
			wantPath: "/viewmtr",
			body:     `["KAFD"]`,
			errKind:  apperr.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				var body viewLineRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "4", body.Line)
				respond(tt.body)(w, r)
			})

			got, err := client.LineStations(context.Background(), tt.kind, "4")
			if tt.errKind != apperr.KindUnknown {
				assert.True(t, apperr.Is(err, tt.errKind))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
