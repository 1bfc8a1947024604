package models

import (
	"bytes"
	"encoding/json"
)

// Place is the from/to reference of a walking leg.
// The planner sends either a station name (a JSON string) or a coordinate
// object ({"lat": .., "lng": ..}); exactly one of Station or Coord is set on a
// resolvable Place. A Place with neither set is unresolvable and callers fall
// back to the leg's station list.
type Place struct {
	Station string
	Coord   *Coordinate
}

// StationRef builds a Place pointing at a named station
func StationRef(name string) Place {
	return Place{Station: name}
}

// CoordinateRef builds a Place pointing at a raw coordinate
func CoordinateRef(c Coordinate) Place {
	return Place{Coord: &c}
}

// IsStation reports whether the place references a station by name
func (p Place) IsStation() bool {
	return p.Coord == nil && p.Station != ""
}

// IsCoordinate reports whether the place carries its own coordinate
func (p Place) IsCoordinate() bool {
	return p.Coord != nil
}

// UnmarshalJSON accepts a string or a {lat,lng} object.
// Shapes it does not recognise decode to an empty, unresolvable Place
// instead of failing the whole route.
func (p *Place) UnmarshalJSON(data []byte) error {
	*p = Place{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return nil
		}
		p.Station = name
	case '{':
		var raw struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
		if raw.Lat == nil || raw.Lng == nil {
			return nil
		}
		p.Coord = &Coordinate{Lat: *raw.Lat, Lng: *raw.Lng}
	}

	return nil
}

// MarshalJSON writes the same shape the planner sends
func (p Place) MarshalJSON() ([]byte, error) {
	switch {
	case p.Coord != nil:
		return json.Marshal(p.Coord)
	case p.Station != "":
		return json.Marshal(p.Station)
	default:
		return []byte("null"), nil
	}
}
