package transit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/stations"
)

// apiStation is an entry of the /api/stations and /nearbystations payloads.
// The two endpoints disagree on the name field: label/value vs name.
type apiStation struct {
	Value    string   `json:"value"`
	Label    string   `json:"label"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Distance *float64 `json:"distance"`
	Duration *float64 `json:"duration"`
}

type apiSegment struct {
	Type     string        `json:"type"`
	Line     lineID        `json:"line"`
	Stations []string      `json:"stations"`
	Duration float64       `json:"duration"`
	Distance *float64      `json:"distance"`
	From     *models.Place `json:"from"`
	To       *models.Place `json:"to"`
}

type apiRoute struct {
	Segments  []apiSegment `json:"segments"`
	TotalTime float64      `json:"total_time"`
}

type nearbyRequest struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

type routeRequest struct {
	StartLat float64 `json:"start_lat"`
	StartLng float64 `json:"start_lng"`
	EndLat   float64 `json:"end_lat"`
	EndLng   float64 `json:"end_lng"`
}

type searchStationRequest struct {
	StationName string `json:"station_name"`
}

type searchStationResponse struct {
	MetroLines []lineID `json:"metro_lines"`
	BusLines   []lineID `json:"bus_lines"`
	Error      *string  `json:"error"`
}

type apiArrival struct {
	Line         lineID  `json:"line"`
	Destination  string  `json:"destination"`
	MinutesUntil float64 `json:"minutes_until"`
}

type viewLineRequest struct {
	Line string `json:"line"`
}

type linesResponse struct {
	Lines lineList `json:"lines"`
}

// lineList is the "lines" field of /mtrlines and /buslines: a comma separated
// string, or occasionally a JSON array
type lineList []string

func (l *lineList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = strings.Split(s, ",")
		return nil
	}

	var ids []lineID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	*l = out
	return nil
}

// ids returns the trimmed, non-empty ids without duplicates
func (l lineList) ids() []string {
	seen := make(map[string]bool, len(l))
	out := make([]string, 0, len(l))
	for _, id := range l {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// orderedDirections decodes a /viewbus or /viewmtr object whose keys name
// directions, keeping the key order. A string "error" member is kept apart.
type orderedDirections struct {
	directions []models.LineDirection
	err        *string
}

func (o *orderedDirections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		if key == "error" {
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil {
				o.err = &msg
				continue
			}
		}

		var stops []string
		if err := json.Unmarshal(raw, &stops); err != nil {
			// Not a stop list
			continue
		}
		o.directions = append(o.directions, models.LineDirection{Name: key, Stations: stops})
	}

	_, err = dec.Token()
	return err
}

// lineID accepts line identifiers sent either as strings or as bare numbers
type lineID string

func (l *lineID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = lineID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*l = lineID(strconv.FormatInt(i, 10))
		return nil
	}
	*l = lineID(n.String())
	return nil
}

func (s apiStation) toModel() models.Station {
	raw := stations.PickRawName(s.Label, s.Name, s.Value)
	return models.Station{
		DisplayName:    stations.DisplayName(raw),
		RawName:        raw,
		Kind:           models.ParseStationKind(s.Type),
		Coord:          models.Coordinate{Lat: s.Lat, Lng: s.Lng},
		DistanceMeters: s.Distance,
		WalkSeconds:    s.Duration,
	}
}

func (s apiSegment) toModel() models.Leg {
	leg := models.Leg{
		Mode:            models.ParseLegMode(s.Type),
		DurationSeconds: s.Duration,
		Stations:        s.Stations,
	}

	switch leg.Mode {
	case models.ModeWalk:
		leg.DistanceMeters = s.Distance
		leg.From = s.From
		leg.To = s.To
	default:
		leg.LineID = string(s.Line)
	}

	return leg
}

func (r apiRoute) toModel() models.Route {
	legs := make([]models.Leg, 0, len(r.Segments))
	for _, seg := range r.Segments {
		legs = append(legs, seg.toModel())
	}
	return models.Route{Legs: legs, TotalSeconds: r.TotalTime}
}

func (a apiArrival) toModel() models.Arrival {
	minutes := int(math.Ceil(a.MinutesUntil))
	if minutes < 0 {
		minutes = 0
	}
	return models.Arrival{
		Line:         string(a.Line),
		Destination:  a.Destination,
		MinutesUntil: minutes,
	}
}

func toLines(ids []lineID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		out = append(out, string(id))
	}
	return out
}
