package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Endpoint is the user's unresolved statement of where a trip starts or ends.
// It is a closed set: KnownStation, FreeText, RawCoordinate and CurrentLocation.
type Endpoint interface {
	endpoint()
	String() string
}

// KnownStation names a station from the station index by display name
type KnownStation struct {
	Name string
}

// FreeText is arbitrary text that needs geocoding
type FreeText struct {
	Query string
}

// RawCoordinate is an already-resolved point (map tap or device fix)
type RawCoordinate struct {
	Coord Coordinate
}

// CurrentLocation is resolved lazily from the device location capability
type CurrentLocation struct{}

func (KnownStation) endpoint()    {}
func (FreeText) endpoint()        {}
func (RawCoordinate) endpoint()   {}
func (CurrentLocation) endpoint() {}

func (e KnownStation) String() string  { return "station:" + e.Name }
func (e FreeText) String() string      { return "text:" + e.Query }
func (e RawCoordinate) String() string { return "coordinate:" + e.Coord.String() }
func (CurrentLocation) String() string { return "current_location" }

// EndpointJSON is the wire form of an Endpoint used by the gateway API
type EndpointJSON struct {
	Type  string   `json:"type"`
	Name  string   `json:"name,omitempty"`
	Query string   `json:"query,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

// Endpoint converts the wire form into a descriptor.
// For current_location the optional lat/lng is the caller's last known fix
// and is returned separately so the resolver can use it as the device location.
func (e EndpointJSON) Endpoint() (Endpoint, *Coordinate, error) {
	var fix *Coordinate
	if e.Lat != nil && e.Lng != nil {
		fix = &Coordinate{Lat: *e.Lat, Lng: *e.Lng}
	}

	switch strings.ToLower(e.Type) {
	case "station":
		if strings.TrimSpace(e.Name) == "" {
			return nil, nil, fmt.Errorf("station endpoint requires a name")
		}
		return KnownStation{Name: e.Name}, nil, nil
	case "text":
		if strings.TrimSpace(e.Query) == "" {
			return nil, nil, fmt.Errorf("text endpoint requires a query")
		}
		return FreeText{Query: e.Query}, nil, nil
	case "coordinate":
		if fix == nil {
			return nil, nil, fmt.Errorf("coordinate endpoint requires lat and lng")
		}
		return RawCoordinate{Coord: *fix}, nil, nil
	case "current_location":
		return CurrentLocation{}, fix, nil
	default:
		return nil, nil, fmt.Errorf("unknown endpoint type %q", e.Type)
	}
}

// UnmarshalEndpoint decodes an EndpointJSON document
func UnmarshalEndpoint(data []byte) (Endpoint, *Coordinate, error) {
	var raw EndpointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	return raw.Endpoint()
}
