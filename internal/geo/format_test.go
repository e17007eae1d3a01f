package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLonLatSeqRoundTrip(t *testing.T) {
	points := [][2]float64{{116.300001, 39.900002}, {116.301, 39.901}}
	s := FormatLonLatSeq(points)
	assert.Equal(t, "116.300001,39.900002;116.301000,39.901000", s)

	back, err := ParseLonLatSeq(s)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.InDelta(t, 116.300001, back[0][0], 1e-9)
	assert.InDelta(t, 39.900002, back[0][1], 1e-9)
}

func TestParseLonLatSeqEmpty(t *testing.T) {
	back, err := ParseLonLatSeq("")
	require.NoError(t, err)
	assert.Nil(t, back)
}

func TestParseLonLatSeqRejectsMalformed(t *testing.T) {
	_, err := ParseLonLatSeq("116.3;39.9")
	assert.Error(t, err)

	_, err = ParseLonLatSeq("abc,39.9")
	assert.Error(t, err)
}

func TestPathLengthMetersSumsConsecutiveHaversine(t *testing.T) {
	points := [][2]float64{{116.30, 39.90}, {116.30, 39.90}, {116.40, 40.00}}
	got := PathLengthMeters(points)
	want := Haversine(116.30, 39.90, 116.30, 39.90) + Haversine(116.30, 39.90, 116.40, 40.00)
	assert.InDelta(t, want, got, 1e-6)
}

func TestPathLengthMetersSinglePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, PathLengthMeters([][2]float64{{1, 1}}))
}
