// Package sheetdb stores a manifest of slicing runs and their assets in
// SQLite. The schema is applied from embedded migrations on Open.
package sheetdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/itemsheet/internal/monitoring"
	"github.com/banshee-data/itemsheet/internal/sheet/pipeline"
	"github.com/banshee-data/itemsheet/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var logf = monitoring.Tagged("sheetdb")

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("sheetdb: run not found")

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Asset statuses.
const (
	AssetWritten = "written"
	AssetSkipped = "skipped"
	AssetFailed  = "failed"
)

// DB is the manifest database.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens or creates the database at path and migrates it to the latest
// schema version.
func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": {"busy_timeout(5000)", "foreign_keys(1)", "journal_mode(WAL)", "synchronous(NORMAL)"},
	}.Encode()
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	logf("opened manifest %s", path)
	return db, nil
}

// SetClock replaces the clock used for run timestamps.
func (db *DB) SetClock(c timeutil.Clock) { db.clock = c }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// MigrateUp applies all pending embedded migrations.
func (db *DB) MigrateUp() error {
	m, err := db.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version and dirty flag.
// It returns 0, false, nil for an unmigrated database.
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := db.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (db *DB) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// StartRun records a new run and returns its ID.
func (db *DB) StartRun(source, prefix string, configJSON []byte) (string, error) {
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, source, prefix, config_json, status, started_unix_nanos)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, prefix, string(configJSON), StatusRunning, db.clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun stores the final counts. A non-nil runErr marks the run failed.
func (db *DB) FinishRun(runID string, s pipeline.Stats, runErr error) error {
	status, errText := StatusDone, sql.NullString{}
	if runErr != nil {
		status = StatusFailed
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := db.Exec(
		`UPDATE runs SET status = ?, error = ?, finished_unix_nanos = ?,
		        detected = ?, merged = ?, merge_passes = ?, filtered = ?, skipped = ?, emitted = ?
		 WHERE run_id = ?`,
		status, errText, db.clock.Now().UnixNano(),
		s.Detected, s.Merged, s.MergePasses, s.Filtered, s.Skipped, s.Emitted,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Run is one row of the runs table.
type Run struct {
	ID         string         `json:"run_id"`
	Source     string         `json:"source"`
	Prefix     string         `json:"prefix"`
	ConfigJSON string         `json:"config_json"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Stats      pipeline.Stats `json:"stats"`
}

const runColumns = `run_id, source, prefix, config_json, status, error,
	started_unix_nanos, finished_unix_nanos,
	detected, merged, merge_passes, filtered, skipped, emitted`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r        Run
		errText  sql.NullString
		started  int64
		finished sql.NullInt64
	)
	err := s.Scan(&r.ID, &r.Source, &r.Prefix, &r.ConfigJSON, &r.Status, &errText,
		&started, &finished,
		&r.Stats.Detected, &r.Stats.Merged, &r.Stats.MergePasses,
		&r.Stats.Filtered, &r.Stats.Skipped, &r.Stats.Emitted)
	if err != nil {
		return Run{}, err
	}
	r.Error = errText.String
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun returns one run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return &r, nil
}

// Runs returns the most recent runs first. limit <= 0 means 50.
func (db *DB) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_unix_nanos DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AssetRecord is one row of the assets table.
type AssetRecord struct {
	Index      int     `json:"index"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Area       int     `json:"area"`
	Status     string  `json:"status"`
	Path       string  `json:"path,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	GatePassed *bool   `json:"gate_passed,omitempty"`
	GateDetail *string `json:"gate_detail,omitempty"`
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertAsset(ex execer, runID string, a AssetRecord) error {
	_, err := ex.Exec(
		`INSERT OR REPLACE INTO assets
		   (run_id, idx, x1, y1, x2, y2, area, status, path, reason, gate_passed, gate_detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Index, a.X1, a.Y1, a.X2, a.Y2, a.Area, a.Status,
		nullString(a.Path), nullString(a.Reason), a.GatePassed, a.GateDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert asset %d for run %s: %w", a.Index, runID, err)
	}
	return nil
}

// Assets returns the records of a run ordered by index.
func (db *DB) Assets(runID string) ([]AssetRecord, error) {
	rows, err := db.Query(
		`SELECT idx, x1, y1, x2, y2, area, status, path, reason, gate_passed, gate_detail
		 FROM assets WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var out []AssetRecord
	for rows.Next() {
		var (
			a            AssetRecord
			path, reason sql.NullString
			gatePassed   sql.NullBool
			gateDetail   sql.NullString
		)
		if err := rows.Scan(&a.Index, &a.X1, &a.Y1, &a.X2, &a.Y2, &a.Area, &a.Status,
			&path, &reason, &gatePassed, &gateDetail); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		a.Path, a.Reason = path.String, reason.String
		if gatePassed.Valid {
			a.GatePassed = &gatePassed.Bool
		}
		if gateDetail.Valid {
			a.GateDetail = &gateDetail.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
