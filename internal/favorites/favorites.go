package favorites

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/passbi/passbi_trip/internal/apperr"
	"github.com/passbi/passbi_trip/internal/models"
)

// Kind is the type of a saved favorite
type Kind string

const (
	KindStation Kind = "station"
	KindPlace   Kind = "place"
	KindRoute   Kind = "route"
)

// ParseKind validates a favorite kind (case-insensitive)
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindStation, KindPlace, KindRoute:
		return k, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown favorite kind %q", s))
	}
}

// Favorite is a saved station, place or route.
// Payload holds the kind-specific record as JSON.
type Favorite struct {
	ID        uuid.UUID       `json:"id"`
	Kind      Kind            `json:"kind"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PlacePayload is the payload of a place favorite
type PlacePayload struct {
	Coord       models.Coordinate `json:"coord"`
	Description string            `json:"description,omitempty"`
}

// RoutePayload is the payload of a route favorite
type RoutePayload struct {
	Origin      models.EndpointJSON `json:"origin"`
	Destination models.EndpointJSON `json:"destination"`
}

// NewStation builds a station favorite
func NewStation(st models.Station) (Favorite, error) {
	return build(KindStation, st.DisplayName, st)
}

// NewPlace builds a place favorite
func NewPlace(name string, p PlacePayload) (Favorite, error) {
	return build(KindPlace, name, p)
}

// NewRoute builds a route favorite
func NewRoute(name string, r RoutePayload) (Favorite, error) {
	return build(KindRoute, name, r)
}

func build(kind Kind, name string, payload any) (Favorite, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	f := Favorite{Kind: kind, Name: name, Payload: data}
	return f, f.Validate()
}

// Validate checks a favorite before it is stored
func (f *Favorite) Validate() error {
	if _, err := ParseKind(string(f.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("favorite name is required")
	}
	if len(f.Payload) == 0 {
		f.Payload = json.RawMessage(`{}`)
	}
	if !json.Valid(f.Payload) {
		return apperr.Validation("favorite payload must be valid JSON")
	}
	return nil
}
