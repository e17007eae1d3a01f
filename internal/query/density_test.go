package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

func TestDensityGridNormalizesAgainstBusiestCell(t *testing.T) {
	dir := t.TempDir()
	points := []geo.Point{
		{TaxiID: 1, T: 0, Lon: 116.0, Lat: 39.6},
		{TaxiID: 2, T: 0, Lon: 116.0, Lat: 39.6}, // same cell as above: count 2
		{TaxiID: 3, T: 0, Lon: 117.3, Lat: 41.5}, // far cell: count 1
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.DensityGrid(context.Background(), DensityGridRequest{GridMeters: 500, TLo: -1, THi: 1})
	require.Nil(t, err)
	assert.Equal(t, 3, resp.TotalPoints)
	assert.Equal(t, 2, resp.MaxCount)
	assert.Len(t, resp.Cells, 2)
	assert.False(t, resp.Truncated)

	var sawFull, sawHalf bool
	for _, c := range resp.Cells {
		switch c.Count {
		case 2:
			assert.Equal(t, 100, c.Density)
			sawFull = true
		case 1:
			assert.Equal(t, 50, c.Density)
			sawHalf = true
		}
	}
	assert.True(t, sawFull)
	assert.True(t, sawHalf)
}

func TestDensityGridNoPointsReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	basename := buildTestIndex(t, dir, []geo.Point{{TaxiID: 1, T: 1000, Lon: 116.0, Lat: 39.6}})

	e := NewEngine(basename, "", "", "", nil)
	_, err := e.DensityGrid(context.Background(), DensityGridRequest{GridMeters: 500, TLo: 0, THi: 10})
	require.NotNil(t, err)
	assert.Equal(t, NotFound, err.Kind)
}

func TestDensityGridRejectsInvertedWindow(t *testing.T) {
	e := NewEngine(t.TempDir()+"/missing", "", "", "", nil)
	_, err := e.DensityGrid(context.Background(), DensityGridRequest{GridMeters: 500, TLo: 10, THi: 0})
	require.NotNil(t, err)
	assert.Equal(t, BadRequest, err.Kind)
}

func TestDensityTimeSeriesBucketsByInterval(t *testing.T) {
	dir := t.TempDir()
	points := []geo.Point{
		{TaxiID: 1, T: 10, Lon: 116.0, Lat: 39.6},
		{TaxiID: 2, T: 20, Lon: 116.0, Lat: 39.6},
		{TaxiID: 3, T: 3700, Lon: 117.3, Lat: 41.5},
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.DensityTimeSeries(context.Background(), DensityTimeSeriesRequest{
		GridMeters:      500,
		TLo:             0,
		THi:             4000,
		IntervalSeconds: 3600,
	})
	require.Nil(t, err)
	assert.Equal(t, 3, resp.TotalPoints)
	require.Len(t, resp.Buckets, 2)
	assert.Equal(t, 2, resp.Buckets[0].TotalPoints)
	assert.Equal(t, 1, resp.Buckets[1].TotalPoints)
}

// TestDensityTimeSeriesBucketsAreAbsoluteNotWindowRelative pins bucket
// boundaries to floor(t/interval)*interval rather than an offset from
// TLo. A non-zero, non-interval-aligned TLo is required to distinguish
// the two: with TLo=0 both rules agree, which is why
// TestDensityTimeSeriesBucketsByInterval alone can't catch a regression
// back to window-relative bucketing.
func TestDensityTimeSeriesBucketsAreAbsoluteNotWindowRelative(t *testing.T) {
	dir := t.TempDir()
	points := []geo.Point{
		{TaxiID: 1, T: 1000, Lon: 116.0, Lat: 39.6},
		{TaxiID: 2, T: 2000, Lon: 116.0, Lat: 39.6},
		{TaxiID: 3, T: 3700, Lon: 117.3, Lat: 41.5},
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.DensityTimeSeries(context.Background(), DensityTimeSeriesRequest{
		GridMeters:      500,
		TLo:             1000,
		THi:             5000,
		IntervalSeconds: 3600,
	})
	require.Nil(t, err)
	assert.Equal(t, 3, resp.TotalPoints)
	require.Len(t, resp.Buckets, 2)

	assert.Equal(t, 2, resp.Buckets[0].TotalPoints)
	assert.Equal(t, 1000.0, resp.Buckets[0].Start)
	assert.Equal(t, 3600.0, resp.Buckets[0].End)

	assert.Equal(t, 1, resp.Buckets[1].TotalPoints)
	assert.Equal(t, 3600.0, resp.Buckets[1].Start)
	assert.Equal(t, 5000.0, resp.Buckets[1].End)
}
