package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

func TestRegionCountLiteralScenario(t *testing.T) {
	dir := t.TempDir()
	const t0 = 1000.0
	points := []geo.Point{
		{TaxiID: 7, T: t0, Lon: 116.30, Lat: 39.90},
		{TaxiID: 7, T: t0 + 60, Lon: 116.30, Lat: 39.90},
		{TaxiID: 7, T: t0 + 120, Lon: 116.40, Lat: 40.00},
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.RegionCount(context.Background(), RegionCountRequest{
		Box: geo.LonLatBox{MinLon: 116.29, MaxLon: 116.41, MinLat: 39.89, MaxLat: 40.01},
		TLo: t0 - 1,
		THi: t0 + 121,
	})
	require.Nil(t, err)
	assert.Equal(t, 1, resp.DistinctTaxis)
	assert.Equal(t, 3, resp.TotalPoints)
	assert.Equal(t, []uint64{7}, resp.SampleTaxiIDs)
}

func TestRegionCountRejectsDegenerateBox(t *testing.T) {
	e := NewEngine(t.TempDir()+"/missing", "", "", "", nil)
	_, err := e.RegionCount(context.Background(), RegionCountRequest{
		Box: geo.LonLatBox{MinLon: 116.3, MaxLon: 116.3, MinLat: 39.9, MaxLat: 40.0},
		TLo: 0,
		THi: 10,
	})
	require.NotNil(t, err)
	assert.Equal(t, BadRequest, err.Kind)
}

func TestRegionCountMissingIndex(t *testing.T) {
	e := NewEngine(t.TempDir()+"/missing", "", "", "", nil)
	_, err := e.RegionCount(context.Background(), RegionCountRequest{
		Box: geo.LonLatBox{MinLon: 116.0, MaxLon: 117.0, MinLat: 39.0, MaxLat: 40.0},
		TLo: 0,
		THi: 10,
	})
	require.NotNil(t, err)
	assert.Equal(t, IndexMissing, err.Kind)
}
