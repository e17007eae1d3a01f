package query

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaxiFile(t *testing.T, dir string, taxiID uint64, lines []string) {
	t.Helper()
	path := filepath.Join(dir, strconv.FormatUint(taxiID, 10)+".txt")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestShortestTravelTimeLiteralScenario(t *testing.T) {
	indexDir := t.TempDir()
	trajDir := t.TempDir()
	basename := buildTestIndex(t, indexDir, flowScenarioPoints())

	loc := time.UTC
	// Raw trajectory samples spanning [100,200], matching taxi 9's A-to-B
	// transition window from spec.md §8 scenario 3/4.
	writeTaxiFile(t, trajDir, 9, []string{
		`9,"1970-01-01 00:01:40",116.05,39.85`,
		`9,"1970-01-01 00:02:30",116.30,39.95`,
		`9,"1970-01-01 00:03:20",116.55,40.05`,
	})

	e := NewEngine(basename, "", trajDir, "", loc)
	resp, err := e.ShortestTravelTime(context.Background(), ShortestTravelTimeRequest{
		BoxA: testBoxA,
		BoxB: testBoxB,
		TLo:  0,
		THi:  1800,
	})
	require.Nil(t, err)
	assert.Equal(t, uint64(9), resp.TaxiID)
	assert.Equal(t, 100.0, resp.DepartT)
	assert.Equal(t, 200.0, resp.ArriveT)
	assert.Equal(t, 100.0, resp.DurationSecs)
	assert.Len(t, resp.Track, 3)
}

func TestShortestTravelTimeNoCommonTaxiReturnsNotFound(t *testing.T) {
	indexDir := t.TempDir()
	trajDir := t.TempDir()
	basename := buildTestIndex(t, indexDir, flowScenarioPoints()[:1])

	e := NewEngine(basename, "", trajDir, "", time.UTC)
	_, err := e.ShortestTravelTime(context.Background(), ShortestTravelTimeRequest{
		BoxA: testBoxA, BoxB: testBoxB, TLo: 0, THi: 1800,
	})
	require.NotNil(t, err)
	assert.Equal(t, NotFound, err.Kind)
}
