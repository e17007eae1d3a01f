package timeparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampBothLayouts(t *testing.T) {
	loc, err := Location(DefaultZone)
	require.NoError(t, err)

	a, err := ParseTimestamp("2008-02-02T13:30", loc)
	require.NoError(t, err)

	b, err := ParseTimestamp("2008-02-02 13:30:00", loc)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestParseTimestampRejectsOtherForms(t *testing.T) {
	loc, _ := Location(DefaultZone)
	_, err := ParseTimestamp("02/02/2008", loc)
	assert.Error(t, err)
}

func TestLocationFallsBackToDefault(t *testing.T) {
	loc, err := Location("")
	require.NoError(t, err)
	assert.Equal(t, DefaultZone, loc.String())
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	loc, _ := Location(DefaultZone)
	ts, err := ParseTimestamp("2008-02-02 13:30:00", loc)
	require.NoError(t, err)

	s := FormatTimestamp(ts, loc)
	assert.Equal(t, "2008-02-02 13:30:00", s)
}

func TestIsValidZone(t *testing.T) {
	assert.True(t, IsValidZone("UTC"))
	assert.True(t, IsValidZone(time.UTC.String()))
	assert.False(t, IsValidZone(""))
	assert.False(t, IsValidZone("Not/AZone"))
}
