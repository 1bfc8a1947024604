package stations

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/passbi/passbi_trip/internal/models"
)

// The nearby-stations endpoint appends the service type to names, e.g. "Olaya (Metro)".
// Matching is case-sensitive and anchored at the end of the string.
var (
	busSuffix   = regexp.MustCompile(`\s*\(Bus\)\s*$`)
	metroSuffix = regexp.MustCompile(`\s*\(Metro\)\s*$`)
)

// DisplayName strips a trailing "(Bus)" or "(Metro)" suffix from a raw station label
func DisplayName(raw string) string {
	name := busSuffix.ReplaceAllString(raw, "")
	name = metroSuffix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// PickRawName returns the first non-empty of label, name and value,
// matching the field precedence of the /stations and /nearby-stations payloads
func PickRawName(label, name, value string) string {
	if label != "" {
		return label
	}
	if name != "" {
		return name
	}
	return value
}

// Clean removes stations with no name or invalid coordinates
func Clean(stations []models.Station, logger *slog.Logger) []models.Station {
	if logger == nil {
		logger = slog.Default()
	}

	cleaned := make([]models.Station, 0, len(stations))
	for _, st := range stations {
		if st.DisplayName == "" {
			logger.Warn("station without name skipped", "raw_name", st.RawName)
			continue
		}
		if !st.Coord.Valid() {
			logger.Warn("station with invalid coordinates skipped",
				"station", st.DisplayName, "lat", st.Coord.Lat, "lng", st.Coord.Lng)
			continue
		}
		if st.Coord.Lat == 0 && st.Coord.Lng == 0 {
			logger.Warn("station has null island coordinates, skipping", "station", st.DisplayName)
			continue
		}
		cleaned = append(cleaned, st)
	}

	if len(cleaned) < len(stations) {
		logger.Info("cleaned stations", "removed", len(stations)-len(cleaned))
	}

	return cleaned
}

// Nearby returns stations within radiusMeters of a point, closest first.
// DistanceMeters is filled in on the returned copies. limit <= 0 means no limit.
func Nearby(snap *Snapshot, at models.Coordinate, radiusMeters float64, limit int) []models.Station {
	var results []models.Station

	for _, st := range snap.Stations() {
		dist := HaversineMeters(at, st.Coord)
		if dist > radiusMeters {
			continue
		}
		d := dist
		st.DistanceMeters = &d
		results = append(results, st)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].DistanceMeters < *results[j].DistanceMeters
	})

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}

	return results
}

// HaversineMeters calculates the distance between two points in meters
func HaversineMeters(a, b models.Coordinate) float64 {
	const earthRadius = 6371000 // meters

	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}
