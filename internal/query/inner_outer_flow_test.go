package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

func TestInnerOuterFlowClassifiesByContainment(t *testing.T) {
	dir := t.TempDir()
	inner := geo.LonLatBox{MinLon: 116.3, MaxLon: 116.4, MinLat: 39.9, MaxLat: 40.0}
	points := []geo.Point{
		{TaxiID: 1, T: 0, Lon: 116.35, Lat: 39.95},    // inner
		{TaxiID: 1, T: 100, Lon: 116.28, Lat: 39.95},  // outer ring: within derived outer box, outside inner
		{TaxiID: 1, T: 200, Lon: 116.35, Lat: 39.95},  // back inner
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.InnerOuterFlow(context.Background(), InnerOuterFlowRequest{Inner: inner, TLo: 0, THi: 300})
	require.Nil(t, err)
	assert.Equal(t, 1, resp.CommonTaxi)
	assert.Equal(t, 1, resp.TotalInToOut)
	assert.Equal(t, 1, resp.TotalOutToIn)
}

func TestInnerOuterFlowRejectsDegenerateInner(t *testing.T) {
	e := NewEngine(t.TempDir()+"/missing", "", "", "", nil)
	_, err := e.InnerOuterFlow(context.Background(), InnerOuterFlowRequest{
		Inner: geo.LonLatBox{MinLon: 116.3, MaxLon: 116.3, MinLat: 39.9, MaxLat: 40.0},
		TLo:   0,
		THi:   10,
	})
	require.NotNil(t, err)
	assert.Equal(t, BadRequest, err.Kind)
}
