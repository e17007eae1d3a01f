package pathstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paths.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStoreCreatesSchema(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertPath(3, 450.5, "116.300000,39.900000;116.302000,39.900000"))

	rows, err := s.FrequentPaths(0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Frequency)
	assert.InDelta(t, 450.5, rows[0].LengthM, 1e-9)
}

func TestFrequentPathsOrdersByFrequencyAndFiltersLength(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertPath(10, 300, "p1"))
	require.NoError(t, s.InsertPath(7, 1500, "p2"))
	require.NoError(t, s.InsertPath(20, 50, "p3"))

	got, err := s.FrequentPaths(100, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].Points)
	assert.Equal(t, "p2", got[1].Points)
}

func TestFrequentPathsFilteredAppliesKeepPredicate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertPath(10, 300, "116.10,39.10;116.20,39.20"))
	require.NoError(t, s.InsertPath(9, 300, "116.90,39.90;116.95,39.95"))

	got, err := s.FrequentPathsFiltered(0, 5, func(points [][2]float64) bool {
		return points[0][0] < 116.5
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Frequency)
}

func TestInsertPathsBatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertPathsBatch([]PathRecord{
		{Frequency: 1, LengthM: 10, Points: "a"},
		{Frequency: 2, LengthM: 20, Points: "b"},
	}))

	got, err := s.FrequentPaths(0, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpenStoreMissingFileErrors(t *testing.T) {
	_, err := OpenStore(filepath.Join(t.TempDir(), "nonexistent.db"))
	assert.Error(t, err)
}
