package stations

import (
	"log/slog"
	"sync"
	"time"

	"github.com/passbi/passbi_trip/internal/models"
)

// Lookup resolves a station display name
type Lookup interface {
	Lookup(name string) (models.Station, bool)
}

// Snapshot is an immutable name -> station mapping built from one station fetch.
// Overlays and resolutions keep using the snapshot they started with even if
// the index is rebuilt underneath them.
type Snapshot struct {
	byName   map[string]models.Station
	stations []models.Station
	builtAt  time.Time
}

// Lookup finds a station by exact display name (nil-safe)
func (s *Snapshot) Lookup(name string) (models.Station, bool) {
	if s == nil {
		return models.Station{}, false
	}
	st, ok := s.byName[name]
	return st, ok
}

// Len returns the number of distinct display names
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// Stations returns the stations in fetch order
func (s *Snapshot) Stations() []models.Station {
	if s == nil {
		return nil
	}
	out := make([]models.Station, len(s.stations))
	copy(out, s.stations)
	return out
}

// BuiltAt returns when the snapshot was built
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// Index holds the current station snapshot for a view session
type Index struct {
	mu      sync.RWMutex
	current *Snapshot
	loaded  bool
	logger  *slog.Logger
}

// NewIndex creates an empty index. Lookups miss until Build is called.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		current: &Snapshot{byName: map[string]models.Station{}},
		logger:  logger.With("component", "station_index"),
	}
}

// Build replaces the index contents with a fresh snapshot.
// Duplicate display names are not deduplicated: the last one wins.
func (i *Index) Build(stations []models.Station) *Snapshot {
	startTime := time.Now()

	byName := make(map[string]models.Station, len(stations))
	duplicates := 0
	for _, st := range stations {
		if _, exists := byName[st.DisplayName]; exists {
			duplicates++
		}
		byName[st.DisplayName] = st
	}

	snap := &Snapshot{
		byName:   byName,
		stations: append([]models.Station(nil), stations...),
		builtAt:  time.Now(),
	}

	// Swap in the new data
	i.mu.Lock()
	i.current = snap
	i.loaded = true
	i.mu.Unlock()

	i.logger.Info("station index built",
		"stations", len(stations),
		"names", len(byName),
		"duplicates", duplicates,
		"duration", time.Since(startTime))

	return snap
}

// Lookup finds a station in the current snapshot
func (i *Index) Lookup(name string) (models.Station, bool) {
	return i.Snapshot().Lookup(name)
}

// Snapshot returns the current snapshot
func (i *Index) Snapshot() *Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// IsLoaded returns true once Build has been called
func (i *Index) IsLoaded() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.loaded
}

// Len returns the number of names in the current snapshot
func (i *Index) Len() int {
	return i.Snapshot().Len()
}
