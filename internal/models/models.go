package models

import (
	"fmt"
	"math"
	"strings"
)

// StationKind represents the type of service stopping at a station
type StationKind string

const (
	KindMetro StationKind = "metro"
	KindBus   StationKind = "bus"
)

// ParseStationKind maps the planner's "type" field onto a StationKind (case-insensitive)
// Anything that is not metro is treated as a bus stop
func ParseStationKind(s string) StationKind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindMetro)) {
		return KindMetro
	}
	return KindBus
}

// LegMode represents the type of a trip leg
type LegMode string

const (
	ModeWalk  LegMode = "walk"
	ModeMetro LegMode = "metro"
	ModeBus   LegMode = "bus"
)

// ParseLegMode maps the planner's segment "type" onto a LegMode (case-insensitive)
// Unknown types are returned as-is so callers can decide how to degrade
func ParseLegMode(s string) LegMode {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "walk":
		return ModeWalk
	case "metro":
		return ModeMetro
	case "bus":
		return ModeBus
	}
	return LegMode(lower)
}

// Coordinate is a WGS84 point
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the WGS84 ranges
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Station is a metro or bus stop known to the planner
type Station struct {
	DisplayName    string      `json:"display_name"`
	RawName        string      `json:"raw_name"`
	Kind           StationKind `json:"kind"`
	Coord          Coordinate  `json:"coord"`
	DistanceMeters *float64    `json:"distance_meters,omitempty"`
	WalkSeconds    *float64    `json:"walk_seconds,omitempty"`
}

// StationLines lists the lines serving a station
type StationLines struct {
	MetroLines []string `json:"metro_lines"`
	BusLines   []string `json:"bus_lines"`
}

// Arrival is an upcoming departure at a station
type Arrival struct {
	Line         string `json:"line"`
	Destination  string `json:"destination"`
	MinutesUntil int    `json:"minutes_until"`
}

// Line is a metro or bus line as listed by the planner
type Line struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Kind  StationKind `json:"kind"`
	Color string      `json:"color,omitempty"`
}

// LineDirection is the ordered stop list of a line in one direction.
// Metro lines have a single unnamed direction.
type LineDirection struct {
	Name     string   `json:"name,omitempty"`
	Stations []string `json:"stations"`
}

// LineStations is a line together with its stops
type LineStations struct {
	Line       Line            `json:"line"`
	Directions []LineDirection `json:"directions"`
}

// Leg represents one mode-homogeneous segment of a trip
type Leg struct {
	Mode            LegMode  `json:"mode"`
	DurationSeconds float64  `json:"duration_seconds"`
	Stations        []string `json:"stations,omitempty"` // ordered first to last

	// Walk only
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	From           *Place   `json:"from,omitempty"`
	To             *Place   `json:"to,omitempty"`

	// Metro and bus only
	LineID string `json:"line_id,omitempty"`
}

// DurationMinutes rounds the leg duration up to whole minutes
func (l Leg) DurationMinutes() int {
	return CeilMinutes(l.DurationSeconds)
}

// StopCount returns the number of stations traversed
func (l Leg) StopCount() int {
	return len(l.Stations)
}

// FirstStation returns the first traversed station, if any
func (l Leg) FirstStation() (string, bool) {
	if len(l.Stations) == 0 {
		return "", false
	}
	return l.Stations[0], true
}

// LastStation returns the last traversed station, if any
func (l Leg) LastStation() (string, bool) {
	if len(l.Stations) == 0 {
		return "", false
	}
	return l.Stations[len(l.Stations)-1], true
}

// Route is a complete multi-modal trip returned by the planner
type Route struct {
	Legs         []Leg   `json:"legs"`
	TotalSeconds float64 `json:"total_seconds"`
}

// TotalMinutes rounds the total trip time up to whole minutes
func (r Route) TotalMinutes() int {
	return CeilMinutes(r.TotalSeconds)
}

// ResolvedEndpoint is an endpoint descriptor converted to a concrete coordinate
type ResolvedEndpoint struct {
	Coord Coordinate `json:"coord"`
	Label string     `json:"label"`
}

// CeilMinutes converts seconds to minutes, always rounding up
func CeilMinutes(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds / 60.0))
}
