package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilMinutes(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected int
	}{
		{"Exactly one minute", 60, 1},
		{"Ninety seconds rounds up", 90, 2},
		{"One second", 1, 1},
		{"Ten minutes", 600, 10},
		{"Zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CeilMinutes(tt.seconds))
		})
	}
}

func TestRouteTotalMinutes(t *testing.T) {
	r := Route{TotalSeconds: 721}
	assert.Equal(t, 13, r.TotalMinutes())
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Lat: 24.7, Lng: 46.6}.Valid())
	assert.True(t, Coordinate{Lat: 0, Lng: 0}.Valid())
	assert.True(t, Coordinate{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Coordinate{Lat: 95, Lng: 46}.Valid())
	assert.False(t, Coordinate{Lat: 24, Lng: -181}.Valid())
}

func TestPlaceUnmarshal(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantStation string
		wantCoord   *Coordinate
	}{
		{
			name:        "Station name",
			input:       `"Olaya"`,
			wantStation: "Olaya",
		},
		{
			name:      "Coordinate object",
			input:     `{"lat": 24.7, "lng": 46.68}`,
			wantCoord: &Coordinate{Lat: 24.7, Lng: 46.68},
		},
		{
			name:  "Coordinate object missing lng",
			input: `{"lat": 24.7}`,
		},
		{
			name:  "Coordinate object with string values",
			input: `{"lat": "24.7", "lng": "46.6"}`,
		},
		{
			name:  "Number is unresolvable",
			input: `42`,
		},
		{
			name:  "Null",
			input: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Place
			require.NoError(t, json.Unmarshal([]byte(tt.input), &p))
			assert.Equal(t, tt.wantStation, p.Station)
			assert.Equal(t, tt.wantCoord, p.Coord)
		})
	}
}

func TestPlaceInsideLeg(t *testing.T) {
	payload := `{"mode":"walk","from":{"lat":24.1,"lng":46.2},"to":"KSU"}`

	var leg Leg
	require.NoError(t, json.Unmarshal([]byte(payload), &leg))

	require.NotNil(t, leg.From)
	assert.True(t, leg.From.IsCoordinate())
	require.NotNil(t, leg.To)
	assert.True(t, leg.To.IsStation())
	assert.Equal(t, "KSU", leg.To.Station)

	out, err := json.Marshal(leg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"to":"KSU"`)
	assert.Contains(t, string(out), `"from":{"lat":24.1,"lng":46.2}`)
}

func TestParseLegMode(t *testing.T) {
	assert.Equal(t, ModeWalk, ParseLegMode("WALK"))
	assert.Equal(t, ModeMetro, ParseLegMode("Metro"))
	assert.Equal(t, ModeBus, ParseLegMode(" bus "))
	assert.Equal(t, LegMode("ferry"), ParseLegMode("Ferry"))
}

func TestParseStationKind(t *testing.T) {
	assert.Equal(t, KindMetro, ParseStationKind("METRO"))
	assert.Equal(t, KindBus, ParseStationKind("bus"))
	assert.Equal(t, KindBus, ParseStationKind(""))
}

func TestLegStations(t *testing.T) {
	leg := Leg{Stations: []string{"A", "B", "C"}}
	first, ok := leg.FirstStation()
	assert.True(t, ok)
	assert.Equal(t, "A", first)
	last, ok := leg.LastStation()
	assert.True(t, ok)
	assert.Equal(t, "C", last)
	assert.Equal(t, 3, leg.StopCount())

	_, ok = Leg{}.LastStation()
	assert.False(t, ok)
}

func TestEndpointJSON(t *testing.T) {
	lat, lng := 24.7, 46.6

	tests := []struct {
		name    string
		input   EndpointJSON
		want    Endpoint
		wantFix bool
		wantErr bool
	}{
		{"Station", EndpointJSON{Type: "station", Name: "Olaya"}, KnownStation{Name: "Olaya"}, false, false},
		{"Station without name", EndpointJSON{Type: "station"}, nil, false, true},
		{"Text", EndpointJSON{Type: "text", Query: "KSU"}, FreeText{Query: "KSU"}, false, false},
		{"Coordinate", EndpointJSON{Type: "coordinate", Lat: &lat, Lng: &lng}, RawCoordinate{Coord: Coordinate{Lat: lat, Lng: lng}}, false, false},
		{"Coordinate without lat", EndpointJSON{Type: "coordinate", Lng: &lng}, nil, false, true},
		{"Current location with fix", EndpointJSON{Type: "current_location", Lat: &lat, Lng: &lng}, CurrentLocation{}, true, false},
		{"Current location without fix", EndpointJSON{Type: "current_location"}, CurrentLocation{}, false, false},
		{"Unknown", EndpointJSON{Type: "teleport"}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, fix, err := tt.input.Endpoint()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ep)
			assert.Equal(t, tt.wantFix, fix != nil)
		})
	}
}
