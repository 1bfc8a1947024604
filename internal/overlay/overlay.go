package overlay

import (
	"github.com/paulmach/orb"

	"github.com/passbi/passbi_trip/internal/describe"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/stations"
)

// Style is the stroke style of a polyline
type Style string

const (
	StyleSolid  Style = "solid"
	StyleDashed Style = "dashed"
)

// Stroke widths and the walking dash pattern (dash, gap)
const (
	WalkWidth    = 12.0
	TransitWidth = 10.0
)

var walkDashPattern = []float64{20, 10}

// Polyline is one drawable leg
type Polyline struct {
	Mode        models.LegMode      `json:"mode"`
	LineID      string              `json:"line_id,omitempty"`
	Points      []models.Coordinate `json:"points"`
	Color       describe.ColorToken `json:"color"`
	Style       Style               `json:"style"`
	Width       float64             `json:"width"`
	DashPattern []float64           `json:"dash_pattern,omitempty"`
}

// Camera frames the route
type Camera struct {
	Center models.Coordinate `json:"center"`
	Zoom   int               `json:"zoom"`
	Min    models.Coordinate `json:"min"`
	Max    models.Coordinate `json:"max"`
}

// Overlay is everything the map needs to draw one route.
// Camera is nil when no point of the route could be located.
type Overlay struct {
	Polylines []Polyline `json:"polylines"`
	Camera    *Camera    `json:"camera,omitempty"`
}

// Options tunes how an overlay is built
type Options struct {
	// FrameWalkEndpoints also frames walking from/to coordinates and every
	// other drawn point, not only points backed by a known station
	FrameWalkEndpoints bool
}

// Build converts a route into styled polylines and a camera.
// Names missing from the station lookup are skipped and a leg with no
// locatable point produces no polyline.
func Build(route models.Route, lookup stations.Lookup, opts Options) Overlay {
	ov := Overlay{Polylines: make([]Polyline, 0, len(route.Legs))}

	var frame orb.MultiPoint
	for _, leg := range route.Legs {
		// Camera bounds follow the station lists of every leg
		for _, name := range leg.Stations {
			if st, ok := lookupStation(lookup, name); ok {
				frame = append(frame, toPoint(st.Coord))
			}
		}

		line, ok := styleFor(leg)
		if !ok {
			continue
		}

		line.Points = legPoints(leg, lookup)
		if len(line.Points) > 0 {
			ov.Polylines = append(ov.Polylines, line)
		}

		if opts.FrameWalkEndpoints {
			for _, c := range line.Points {
				frame = append(frame, toPoint(c))
			}
		}
	}

	ov.Camera = cameraFor(frame)
	return ov
}

// ZoomFor picks a zoom level for the larger side of a bounding box, in degrees
func ZoomFor(span float64) int {
	switch {
	case span > 0.1:
		return 12
	case span > 0.05:
		return 13
	case span > 0.02:
		return 14
	default:
		return 15
	}
}

func styleFor(leg models.Leg) (Polyline, bool) {
	line := Polyline{Mode: leg.Mode, LineID: leg.LineID, Color: describe.ColorFor(leg)}

	switch leg.Mode {
	case models.ModeWalk:
		line.Style = StyleDashed
		line.Width = WalkWidth
		line.DashPattern = append([]float64(nil), walkDashPattern...)
	case models.ModeMetro, models.ModeBus:
		line.Style = StyleSolid
		line.Width = TransitWidth
	default:
		return Polyline{}, false
	}

	return line, true
}

// legPoints resolves the drawable points of a leg.
// Walking legs prefer their from/to references and fall back to the station list.
func legPoints(leg models.Leg, lookup stations.Lookup) []models.Coordinate {
	if leg.Mode != models.ModeWalk {
		return stationPoints(leg.Stations, lookup)
	}

	from, fromOK := resolvePlace(leg.From, lookup)
	to, toOK := resolvePlace(leg.To, lookup)
	if fromOK && toOK {
		return []models.Coordinate{from, to}
	}

	if points := stationPoints(leg.Stations, lookup); len(points) > 0 {
		return points
	}

	var points []models.Coordinate
	if fromOK {
		points = append(points, from)
	}
	if toOK {
		points = append(points, to)
	}
	return points
}

func stationPoints(names []string, lookup stations.Lookup) []models.Coordinate {
	var points []models.Coordinate
	for _, name := range names {
		if st, ok := lookupStation(lookup, name); ok {
			points = append(points, st.Coord)
		}
	}
	return points
}

func resolvePlace(p *models.Place, lookup stations.Lookup) (models.Coordinate, bool) {
	switch {
	case p == nil:
		return models.Coordinate{}, false
	case p.IsCoordinate():
		return *p.Coord, p.Coord.Valid()
	case p.IsStation():
		st, ok := lookupStation(lookup, p.Station)
		return st.Coord, ok
	default:
		return models.Coordinate{}, false
	}
}

func lookupStation(lookup stations.Lookup, name string) (models.Station, bool) {
	if lookup == nil {
		return models.Station{}, false
	}
	return lookup.Lookup(name)
}

func cameraFor(frame orb.MultiPoint) *Camera {
	if len(frame) == 0 {
		return nil
	}

	bound := frame.Bound()
	center := bound.Center()
	latSpan := bound.Max.Lat() - bound.Min.Lat()
	lngSpan := bound.Max.Lon() - bound.Min.Lon()

	span := latSpan
	if lngSpan > span {
		span = lngSpan
	}

	return &Camera{
		Center: fromPoint(center),
		Zoom:   ZoomFor(span),
		Min:    fromPoint(bound.Min),
		Max:    fromPoint(bound.Max),
	}
}

func toPoint(c models.Coordinate) orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

func fromPoint(p orb.Point) models.Coordinate {
	return models.Coordinate{Lat: p.Lat(), Lng: p.Lon()}
}
