package geocode

import (
	"strconv"
	"strings"

	"github.com/passbi/passbi_trip/internal/models"
)

// Result mirrors the relevant parts of the Nominatim search payload.
// Coordinates arrive as strings.
type Result struct {
	PlaceID     int64   `json:"place_id"`
	DisplayName string  `json:"display_name"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Type        string  `json:"type"`
	Importance  float64 `json:"importance"`
}

// Coordinate parses the string coordinates, defaulting each to 0.0 on failure
func (r Result) Coordinate() models.Coordinate {
	c, _ := r.ParsedCoordinate()
	return c
}

// ParsedCoordinate parses the string coordinates and reports whether both parsed
// into a valid WGS84 point. Failed components are 0.0.
func (r Result) ParsedCoordinate() (models.Coordinate, bool) {
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(r.Lat), 64)
	if latErr != nil {
		lat = 0
	}
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(r.Lon), 64)
	if lngErr != nil {
		lng = 0
	}

	c := models.Coordinate{Lat: lat, Lng: lng}
	return c, latErr == nil && lngErr == nil && c.Valid()
}

// Description returns the result type, or "Location" when absent
func (r Result) Description() string {
	if r.Type == "" {
		return "Location"
	}
	return r.Type
}
