package pathstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/pathmining"
)

func TestConsolidateFromMinedBlocks(t *testing.T) {
	blockDir := t.TempDir()

	m := pathmining.NewMiner(geo.DefaultGridSize, 5, 5)
	points := make([]geo.Point, 6)
	for i := range points {
		points[i] = geo.Point{TaxiID: 1, T: float64(i * 60), Lon: 116.30 + float64(i)*0.003, Lat: 39.90}
	}
	m.Mine(1, points)
	require.NoError(t, m.Flush(blockDir))

	store := newTestStore(t)
	n, err := Consolidate(blockDir, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := store.FrequentPaths(0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Frequency)
	assert.Greater(t, rows[0].LengthM, 0.0)

	parsedPoints, err := geo.ParseLonLatSeq(rows[0].Points)
	require.NoError(t, err)
	assert.Len(t, parsedPoints, 5)
}

func TestConsolidateEmptyBlockDir(t *testing.T) {
	blockDir := t.TempDir()
	store := newTestStore(t)
	n, err := Consolidate(blockDir, store)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
