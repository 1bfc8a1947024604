package stations

import (
	"testing"

	"github.com/passbi/passbi_trip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"Al Naseem (Metro)", "Al Naseem"},
		{"King Fahd (Bus)", "King Fahd"},
		{"King Fahd(Bus)  ", "King Fahd"},
		{"Olaya", "Olaya"},
		{"Olaya (metro)", "Olaya (metro)"}, // case-sensitive
		{"(Metro) Olaya", "(Metro) Olaya"}, // end of string only
		{"Stop (Metro) (Bus)", "Stop"},     // bus suffix first, then metro
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.raw))
		})
	}
}

func TestPickRawName(t *testing.T) {
	assert.Equal(t, "label", PickRawName("label", "name", "value"))
	assert.Equal(t, "name", PickRawName("", "name", "value"))
	assert.Equal(t, "value", PickRawName("", "", "value"))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		stations []models.Station
		expected int
	}{
		{
			name: "All valid stations",
			stations: []models.Station{
				station("A", 24.7, 46.6),
				station("B", 24.8, 46.7),
			},
			expected: 2,
		},
		{
			name: "Filter invalid latitude",
			stations: []models.Station{
				station("A", 24.7, 46.6),
				station("B", 95.0, 46.7),
			},
			expected: 1,
		},
		{
			name: "Filter null island",
			stations: []models.Station{
				station("A", 24.7, 46.6),
				station("B", 0, 0),
			},
			expected: 1,
		},
		{
			name: "Filter empty name",
			stations: []models.Station{
				station("", 24.7, 46.6),
			},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Clean(tt.stations, nil), tt.expected)
		})
	}
}

func TestHaversineMeters(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.Coordinate
		expected float64
		delta    float64
	}{
		{
			name:     "Zero distance",
			a:        models.Coordinate{Lat: 24.7136, Lng: 46.6753},
			b:        models.Coordinate{Lat: 24.7136, Lng: 46.6753},
			expected: 0,
			delta:    1,
		},
		{
			name:     "Approximately 1km",
			a:        models.Coordinate{Lat: 24.7136, Lng: 46.6753},
			b:        models.Coordinate{Lat: 24.7226, Lng: 46.6753},
			expected: 1000,
			delta:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, HaversineMeters(tt.a, tt.b), tt.delta)
		})
	}
}

func TestNearby(t *testing.T) {
	idx := NewIndex(nil)
	idx.Build([]models.Station{
		station("Far", 24.80, 46.68),
		station("Close", 24.701, 46.68),
		station("Closer", 24.7001, 46.68),
	})

	at := models.Coordinate{Lat: 24.70, Lng: 46.68}
	got := Nearby(idx.Snapshot(), at, 1500, 0)

	require.Len(t, got, 2)
	assert.Equal(t, "Closer", got[0].DisplayName)
	assert.Equal(t, "Close", got[1].DisplayName)
	require.NotNil(t, got[0].DistanceMeters)
	assert.InDelta(t, 11, *got[0].DistanceMeters, 2)

	limited := Nearby(idx.Snapshot(), at, 50000, 1)
	assert.Len(t, limited, 1)
}
