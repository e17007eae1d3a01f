// Package trajectory reads per-taxi trajectory files: one UTF-8 text file
// per taxi, lines of four comma fields `taxi_id,"YYYY-MM-DD HH:MM:SS",lon,lat`
// (spec.md §4.2/§6).
package trajectory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/monitoring"
	"github.com/HOWILLMAKEIT/taxiflow/internal/security"
)

const lineTimeLayout = "2006-01-02 15:04:05"

// Stats tallies how a file was read, for build-time diagnostics.
type Stats struct {
	LinesRead    int
	LinesSkipped int
}

// ReadFile parses a single taxi file, in file order. Malformed lines are
// skipped and counted, never propagated as an error — per spec.md §4.2 and
// §7's "parse-level errors are recovered silently" policy. loc resolves the
// naive local timestamp in the file.
func ReadFile(path string, loc *time.Location) ([]geo.Point, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open trajectory file %s: %w", path, err)
	}
	defer f.Close()

	var points []geo.Point
	var stats Stats

	scanner := bufio.NewScanner(f)
	// Trajectory files can contain many points per taxi; grow the buffer
	// past bufio's 64KiB default for the rare long line.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		stats.LinesRead++
		p, ok := parseLine(scanner.Text(), loc)
		if !ok {
			stats.LinesSkipped++
			continue
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return points, stats, fmt.Errorf("failed to read trajectory file %s: %w", path, err)
	}

	return points, stats, nil
}

// parseLine parses one `taxi_id,"YYYY-MM-DD HH:MM:SS",lon,lat` line. It
// returns ok=false for anything that doesn't split into exactly four comma
// fields or whose numeric conversions fail; no error is surfaced to the
// caller (§4.2).
func parseLine(line string, loc *time.Location) (geo.Point, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return geo.Point{}, false
	}

	taxiIDStr := strings.TrimSpace(parts[0])
	timeStr := strings.Trim(strings.TrimSpace(parts[1]), `"`)
	lonStr := strings.TrimSpace(parts[2])
	latStr := strings.TrimSpace(parts[3])

	taxiID, err := strconv.ParseUint(taxiIDStr, 10, 64)
	if err != nil {
		return geo.Point{}, false
	}

	t, err := time.ParseInLocation(lineTimeLayout, timeStr, loc)
	if err != nil {
		return geo.Point{}, false
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geo.Point{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Point{}, false
	}

	return geo.Point{TaxiID: taxiID, T: float64(t.Unix()), Lon: lon, Lat: lat}, true
}

// SortByTime orders points ascending by timestamp; downstream code sorts
// explicitly rather than relying on file order once ordering matters.
func SortByTime(points []geo.Point) {
	sort.Slice(points, func(i, j int) bool { return points[i].T < points[j].T })
}

// TaxiIDFromFilename extracts the numeric taxi id from a "<id>.txt" path.
func TaxiIDFromFilename(path string) (uint64, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strconv.ParseUint(base, 10, 64)
}

// WalkDir calls fn once per "<taxi_id>.txt" file directly inside dir, in
// lexical (and thus taxi-id-ascending, for zero-padded corpora) order, so
// that two runs over identical input enumerate trajectories identically —
// required for mining determinism (spec.md §8).
func WalkDir(dir string, loc *time.Location, fn func(taxiID uint64, path string, points []geo.Point, stats Stats)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read trajectory directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	for _, path := range files {
		taxiID, err := TaxiIDFromFilename(path)
		if err != nil {
			monitoring.Logf("trajectory: skipping file with non-numeric name %s: %v", path, err)
			continue
		}
		points, stats, err := ReadFile(path, loc)
		if err != nil {
			monitoring.Logf("trajectory: failed to read %s: %v", path, err)
			continue
		}
		fn(taxiID, path, points, stats)
	}
	return nil
}

// ReadTaxiTrack re-reads one taxi's raw file, filtered to [tLo, tHi] and
// sorted by time — used by the shortest-travel-time operator (§4.5.6) to
// recover the realized track for the winning taxi. dir must be validated
// as the caller's configured trajectory directory.
func ReadTaxiTrack(dir string, taxiID uint64, tLo, tHi float64, loc *time.Location) ([]geo.Point, error) {
	path := filepath.Join(dir, strconv.FormatUint(taxiID, 10)+".txt")
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return nil, fmt.Errorf("refusing to read taxi track outside trajectory directory: %w", err)
	}

	points, _, err := ReadFile(path, loc)
	if err != nil {
		return nil, err
	}

	var out []geo.Point
	for _, p := range points {
		if p.T >= tLo && p.T <= tHi {
			out = append(out, p)
		}
	}
	SortByTime(out)
	return out, nil
}
