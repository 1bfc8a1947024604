package stations

import (
	"sync"
	"testing"

	"github.com/passbi/passbi_trip/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func station(name string, lat, lng float64) models.Station {
	return models.Station{DisplayName: name, RawName: name, Kind: models.KindMetro, Coord: models.Coordinate{Lat: lat, Lng: lng}}
}

func TestIndexRoundTrip(t *testing.T) {
	idx := NewIndex(nil)
	s := station("Olaya", 24.70, 46.68)

	idx.Build([]models.Station{s})

	got, ok := idx.Lookup("Olaya")
	require.True(t, ok)
	assert.Equal(t, s, got)
	assert.True(t, idx.IsLoaded())
}

func TestIndexEmptyBeforeBuild(t *testing.T) {
	idx := NewIndex(nil)

	_, ok := idx.Lookup("Olaya")
	assert.False(t, ok)
	assert.False(t, idx.IsLoaded())
	assert.Equal(t, 0, idx.Len())
}

func TestIndexLastWriterWins(t *testing.T) {
	idx := NewIndex(nil)
	idx.Build([]models.Station{
		station("Olaya", 24.70, 46.68),
		station("Olaya", 24.71, 46.69),
	})

	got, ok := idx.Lookup("Olaya")
	require.True(t, ok)
	assert.Equal(t, 24.71, got.Coord.Lat)
	assert.Equal(t, 1, idx.Len())
	assert.Len(t, idx.Snapshot().Stations(), 2)
}

func TestOldSnapshotSurvivesRebuild(t *testing.T) {
	idx := NewIndex(nil)
	idx.Build([]models.Station{station("Olaya", 24.70, 46.68)})
	old := idx.Snapshot()

	idx.Build([]models.Station{station("KSU", 24.72, 46.62)})

	_, ok := old.Lookup("Olaya")
	assert.True(t, ok)
	_, ok = idx.Lookup("Olaya")
	assert.False(t, ok)
}

func TestNilSnapshotLookup(t *testing.T) {
	var snap *Snapshot
	_, ok := snap.Lookup("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, snap.Len())
	assert.Nil(t, snap.Stations())
}

func TestConcurrentReadsDuringBuild(t *testing.T) {
	idx := NewIndex(nil)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				idx.Lookup("Olaya")
			}
		}()
	}
	idx.Build([]models.Station{station("Olaya", 24.70, 46.68)})
	wg.Wait()

	_, ok := idx.Lookup("Olaya")
	assert.True(t, ok)
}
