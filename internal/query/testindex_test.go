package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/rtree"
)

// buildTestIndex writes a small R-tree at basename in dir from points,
// keyed sequentially as entry ids and carrying each point's TaxiID as
// payload.
func buildTestIndex(t *testing.T, dir string, points []geo.Point) string {
	t.Helper()
	basename := filepath.Join(dir, "test")

	b := rtree.NewBuilder(4)
	for i, p := range points {
		b.Insert(uint64(i), geo.PointBBox(p.Lon, p.Lat, p.T), p.TaxiID)
	}
	require.NoError(t, b.Build(basename))
	return basename
}
