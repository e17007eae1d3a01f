package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
)

var (
	testBoxA = geo.LonLatBox{MinLon: 116.0, MaxLon: 116.1, MinLat: 39.8, MaxLat: 39.9}
	testBoxB = geo.LonLatBox{MinLon: 116.5, MaxLon: 116.6, MinLat: 40.0, MaxLat: 40.1}
)

// taxi 9's literal A/B sequence from spec.md §8 scenario 3: A@100, B@200,
// A@400, B@1000, with gate Δ=30min (1800s).
func flowScenarioPoints() []geo.Point {
	return []geo.Point{
		{TaxiID: 9, T: 100, Lon: 116.05, Lat: 39.85},
		{TaxiID: 9, T: 200, Lon: 116.55, Lat: 40.05},
		{TaxiID: 9, T: 400, Lon: 116.05, Lat: 39.85},
		{TaxiID: 9, T: 1000, Lon: 116.55, Lat: 40.05},
	}
}

func TestFlowLiteralScenarioTotalAToB(t *testing.T) {
	dir := t.TempDir()
	basename := buildTestIndex(t, dir, flowScenarioPoints())

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.Flow(context.Background(), FlowRequest{
		BoxA:        testBoxA,
		BoxB:        testBoxB,
		TLo:         0,
		THi:         1800,
		DeltaMinute: 30,
	})
	require.Nil(t, err)
	assert.Equal(t, 2, resp.TotalAToB)
	assert.Equal(t, 1, resp.TotalBToA)
	assert.Equal(t, 1, resp.CommonTaxi)
}

func TestFlowGateExcludesSlowTransitions(t *testing.T) {
	dir := t.TempDir()
	points := []geo.Point{
		{TaxiID: 9, T: 0, Lon: 116.05, Lat: 39.85},
		{TaxiID: 9, T: 10000, Lon: 116.55, Lat: 40.05}, // far beyond any reasonable gate
	}
	basename := buildTestIndex(t, dir, points)

	e := NewEngine(basename, "", "", "", nil)
	resp, err := e.Flow(context.Background(), FlowRequest{
		BoxA:        testBoxA,
		BoxB:        testBoxB,
		TLo:         0,
		THi:         10000,
		DeltaMinute: 1,
	})
	require.Nil(t, err)
	assert.Equal(t, 0, resp.TotalAToB)
}

func TestFlowSymmetryUnderSwappedRegions(t *testing.T) {
	dir := t.TempDir()
	basename := buildTestIndex(t, dir, flowScenarioPoints())

	e := NewEngine(basename, "", "", "", nil)
	req := FlowRequest{BoxA: testBoxA, BoxB: testBoxB, TLo: 0, THi: 1800, DeltaMinute: 30}
	resp, err := e.Flow(context.Background(), req)
	require.Nil(t, err)

	swapped := FlowRequest{BoxA: testBoxB, BoxB: testBoxA, TLo: 0, THi: 1800, DeltaMinute: 30}
	swappedResp, swapErr := e.Flow(context.Background(), swapped)
	require.Nil(t, swapErr)

	assert.Equal(t, resp.TotalAToB, swappedResp.TotalBToA)
	assert.Equal(t, resp.TotalBToA, swappedResp.TotalAToB)
}

func TestFlowRejectsNonPositiveDelta(t *testing.T) {
	e := NewEngine(t.TempDir()+"/missing", "", "", "", nil)
	_, err := e.Flow(context.Background(), FlowRequest{BoxA: testBoxA, BoxB: testBoxB, TLo: 0, THi: 10, DeltaMinute: 0})
	require.NotNil(t, err)
	assert.Equal(t, BadRequest, err.Kind)
}
