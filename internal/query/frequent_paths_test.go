package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathstore"
)

func seedPathStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paths.db")
	store, err := pathstore.NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	p1 := geo.FormatLonLatSeq([][2]float64{{116.0, 39.8}, {116.1, 39.9}}) // starts/ends in A/B boxes below
	p2 := geo.FormatLonLatSeq([][2]float64{{117.0, 41.0}, {117.1, 41.1}})
	p3 := geo.FormatLonLatSeq([][2]float64{{115.8, 39.5}, {115.9, 39.6}})

	require.NoError(t, store.InsertPathsBatch([]pathstore.PathRecord{
		{Frequency: 10, LengthM: 300, Points: p1},
		{Frequency: 7, LengthM: 1500, Points: p2},
		{Frequency: 20, LengthM: 50, Points: p3},
	}))
	return path
}

func TestFrequentPathsGlobalLiteralScenario(t *testing.T) {
	path := seedPathStore(t)
	e := NewEngine("", path, "", "", nil)

	resp, err := e.FrequentPaths(FrequentPathsRequest{K: 2, LengthMin: 100})
	require.Nil(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 10, resp.Results[0].Frequency)
	assert.Equal(t, 7, resp.Results[1].Frequency)
}

func TestFrequentPathsABRestrictsToContainment(t *testing.T) {
	path := seedPathStore(t)
	e := NewEngine("", path, "", "", nil)

	resp, err := e.FrequentPaths(FrequentPathsRequest{
		K:         2,
		LengthMin: 0,
		AB: &FrequentPathsAB{
			BoxA: geo.LonLatBox{MinLon: 115.9, MaxLon: 116.1, MinLat: 39.7, MaxLat: 39.9},
			BoxB: geo.LonLatBox{MinLon: 116.0, MaxLon: 116.2, MinLat: 39.8, MaxLat: 40.0},
		},
	})
	require.Nil(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 10, resp.Results[0].Frequency)
}

func TestFrequentPathsMissingStoreReturnsStoreMissing(t *testing.T) {
	e := NewEngine("", filepath.Join(t.TempDir(), "missing.db"), "", "", nil)
	_, err := e.FrequentPaths(FrequentPathsRequest{K: 1, LengthMin: 0})
	require.NotNil(t, err)
	assert.Equal(t, StoreMissing, err.Kind)
}

func TestFrequentPathsRejectsNonPositiveK(t *testing.T) {
	e := NewEngine("", filepath.Join(t.TempDir(), "missing.db"), "", "", nil)
	_, err := e.FrequentPaths(FrequentPathsRequest{K: 0, LengthMin: 0})
	require.NotNil(t, err)
	assert.Equal(t, BadRequest, err.Kind)
}
