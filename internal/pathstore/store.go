// Package pathstore persists consolidated sub-paths into a sqlite-backed
// `paths` table (spec.md §4.4/§6): one row per distinct sub-path key, with
// its frequency (distinct taxis), geodesic length, and explicit point
// list. The store is always rebuilt fresh by an offline consolidation
// run, so unlike the teacher's internal/db this package carries no
// legacy-schema detection or baselining — just pragmas plus a migrate-up.
package pathstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/HOWILLMAKEIT/taxiflow/internal/geo"
	"github.com/HOWILLMAKEIT/taxiflow/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PathRecord is one consolidated sub-path row.
type PathRecord struct {
	ID        int64
	Frequency int
	LengthM   float64
	Points    string // "lon,lat;lon,lat;..." per spec.md §6
}

// Store wraps a sqlite database holding the `paths` table.
type Store struct {
	db *sql.DB
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	return nil
}

func getMigrationsFS() (fs.FS, error) {
	return fs.Sub(migrationsFS, "migrations")
}

// NewStore creates (if absent) and migrates a path-store database at
// path, ready for consolidation writes. Callers building a fresh store
// should remove any pre-existing file at path first, per the build-time
// writer's exclusive-access contract (spec.md §5).
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path store %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenStore opens an existing path-store database with the same connection
// settings NewStore uses; the connection is not opened in a read-only mode
// and no migrations are run. It returns an error if path does not exist.
func OpenStore(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("path store %s not found: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path store %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrateUp() error {
	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("path store migration failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) { monitoring.Logf("[migrate] "+format, v...) }
func (migrateLogger) Verbose() bool                          { return false }

// Version reports the store's applied migration version and whether the
// last migration run left the schema dirty, for cmd/migrate's inspect
// mode. ok is false when no migration has ever run.
func (s *Store) Version() (version uint, dirty bool, ok bool, err error) {
	migrationsFS, ferr := getMigrationsFS()
	if ferr != nil {
		return 0, false, false, fmt.Errorf("failed to load migrations: %w", ferr)
	}
	sourceDriver, serr := iofs.New(migrationsFS, ".")
	if serr != nil {
		return 0, false, false, fmt.Errorf("failed to create iofs source driver: %w", serr)
	}
	dbDriver, derr := sqlite.WithInstance(s.db, &sqlite.Config{})
	if derr != nil {
		return 0, false, false, fmt.Errorf("failed to create sqlite migrate driver: %w", derr)
	}
	m, merr := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if merr != nil {
		return 0, false, false, fmt.Errorf("failed to create migrate instance: %w", merr)
	}

	v, d, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if verr != nil {
		return 0, false, false, fmt.Errorf("failed to read migration version: %w", verr)
	}
	return v, d, true, nil
}

// InsertPath appends one consolidated path row.
func (s *Store) InsertPath(frequency int, lengthM float64, points string) error {
	_, err := s.db.Exec(`INSERT INTO paths (frequency, length, points) VALUES (?, ?, ?)`, frequency, lengthM, points)
	return err
}

// InsertPathsBatch inserts rows inside a single transaction, for the bulk
// consolidation pass.
func (s *Store) InsertPathsBatch(rows []PathRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin consolidation transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO paths (frequency, length, points) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.Frequency, r.LengthM, r.Points); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert path row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit consolidation transaction: %w", err)
	}
	return nil
}

// FrequentPaths returns up to k rows with length >= lengthMin, ordered by
// frequency descending — the global top-k query (spec.md §4.5.7).
func (s *Store) FrequentPaths(lengthMin float64, k int) ([]PathRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, frequency, length, points FROM paths WHERE length >= ? ORDER BY frequency DESC LIMIT ?`,
		lengthMin, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent paths: %w", err)
	}
	defer rows.Close()
	return scanPathRecords(rows)
}

// FrequentPathsFiltered scans all rows with length >= lengthMin ordered by
// frequency descending, applying keep to each row's decoded point list,
// and returns the first k that pass — used by the A→B frequent-path mode
// which must filter on start/end containment after the length filter
// (spec.md §4.5.7).
func (s *Store) FrequentPathsFiltered(lengthMin float64, k int, keep func(points [][2]float64) bool) ([]PathRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, frequency, length, points FROM paths WHERE length >= ? ORDER BY frequency DESC`,
		lengthMin,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequent paths: %w", err)
	}
	defer rows.Close()

	all, err := scanPathRecords(rows)
	if err != nil {
		return nil, err
	}

	var out []PathRecord
	for _, r := range all {
		if len(out) >= k {
			break
		}
		points, err := geo.ParseLonLatSeq(r.Points)
		if err != nil {
			return nil, err
		}
		if keep(points) {
			out = append(out, r)
		}
	}
	return out, nil
}

func scanPathRecords(rows *sql.Rows) ([]PathRecord, error) {
	var out []PathRecord
	for rows.Next() {
		var r PathRecord
		if err := rows.Scan(&r.ID, &r.Frequency, &r.LengthM, &r.Points); err != nil {
			return nil, fmt.Errorf("failed to scan path row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
