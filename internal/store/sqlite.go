package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"replaychart/internal/domain"
	"replaychart/internal/gather"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ gather.Observer = (*SQLiteRecorder)(nil)

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Loaded     int
	Skipped    int
	Empty      int
	Malformed  int
	Records    int
	Error      string
}

// FileEvent is one row of the file_events table.
type FileEvent struct {
	RunID     string
	File      string
	Status    string // "loaded" or "skipped"
	Bytes     int
	Lines     int
	Added     int
	Malformed int
	Error     string
}

// SQLiteRecorder keeps an audit log of ingest runs: one row per run, per
// file and per malformed line. Bar data itself is never stored. Observer
// methods cannot return errors, so failures are logged.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *slog.Logger

	runID string
}

// NewSQLiteRecorder opens (or creates) the database at dbPath and runs
// migrations.
func NewSQLiteRecorder(dbPath string, log *slog.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With("component", "audit")}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info("sqlite audit opened", "path", dbPath)
	return r, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			files       INTEGER NOT NULL,
			loaded      INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			empty       INTEGER NOT NULL DEFAULT 0,
			malformed   INTEGER NOT NULL DEFAULT 0,
			records     INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS file_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			file      TEXT NOT NULL,
			status    TEXT NOT NULL,
			bytes     INTEGER NOT NULL DEFAULT 0,
			lines     INTEGER NOT NULL DEFAULT 0,
			added     INTEGER NOT NULL DEFAULT 0,
			malformed INTEGER NOT NULL DEFAULT 0,
			error     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_events_run ON file_events(run_id)`,

		`CREATE TABLE IF NOT EXISTS malformed_lines (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			file      TEXT NOT NULL,
			line_no   INTEGER NOT NULL,
			excerpt   TEXT NOT NULL,
			error     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_malformed_run ON malformed_lines(run_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// gather.Observer
// ---------------------------------------------------------------------------

func (r *SQLiteRecorder) Started(runID string, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runID = runID
	r.exec("recording run start",
		`INSERT INTO runs (run_id, started_at, files) VALUES (?, ?, ?)`,
		runID, time.Now().UnixMilli(), len(files))
}

func (r *SQLiteRecorder) FileSkipped(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec("recording skipped file",
		`INSERT INTO file_events (run_id, timestamp, file, status, error) VALUES (?, ?, ?, 'skipped', ?)`,
		r.runID, time.Now().UnixMilli(), name, errString(err))
}

func (r *SQLiteRecorder) LineMalformed(name string, lineNo int, line string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const maxExcerpt = 256
	if len(line) > maxExcerpt {
		line = line[:maxExcerpt]
	}
	r.exec("recording malformed line",
		`INSERT INTO malformed_lines (run_id, timestamp, file, line_no, excerpt, error) VALUES (?, ?, ?, ?, ?, ?)`,
		r.runID, time.Now().UnixMilli(), name, lineNo, line, errString(err))
}

func (r *SQLiteRecorder) FileLoaded(name string, stats gather.FileStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec("recording loaded file",
		`INSERT INTO file_events (run_id, timestamp, file, status, bytes, lines, added, malformed)
		 VALUES (?, ?, ?, 'loaded', ?, ?, ?, ?)`,
		r.runID, time.Now().UnixMilli(), name, stats.Bytes, stats.Lines, stats.Added, stats.Malformed)
}

// Changed is not audited; the bar set is not persisted.
func (r *SQLiteRecorder) Changed([]domain.RawBar) {}

func (r *SQLiteRecorder) Finished(sum gather.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec("recording run finish",
		`UPDATE runs SET finished_at = ?, loaded = ?, skipped = ?, empty = ?, malformed = ?, records = ?, error = ?
		 WHERE run_id = ?`,
		time.Now().UnixMilli(), sum.Loaded, sum.Skipped, sum.Empty, sum.Malformed, sum.Records, sum.Err, sum.RunID)
}

func (r *SQLiteRecorder) exec(what, query string, args ...any) {
	if _, err := r.db.Exec(query, args...); err != nil {
		r.log.Error(what, "run", r.runID, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, started_at, COALESCE(finished_at, 0), files, loaded, skipped, empty, malformed, records, error
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		if err := rows.Scan(&rec.RunID, &started, &finished, &rec.Files, &rec.Loaded, &rec.Skipped,
			&rec.Empty, &rec.Malformed, &rec.Records, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		if finished != 0 {
			rec.FinishedAt = time.UnixMilli(finished)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FileEvents returns the file events of a run in the order they happened.
func (r *SQLiteRecorder) FileEvents(ctx context.Context, runID string) ([]FileEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, file, status, bytes, lines, added, malformed, error
		 FROM file_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query file events: %w", err)
	}
	defer rows.Close()

	var out []FileEvent
	for rows.Next() {
		var ev FileEvent
		if err := rows.Scan(&ev.RunID, &ev.File, &ev.Status, &ev.Bytes, &ev.Lines, &ev.Added, &ev.Malformed, &ev.Error); err != nil {
			return nil, fmt.Errorf("scan file event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MalformedCount returns the number of malformed lines recorded for a run.
func (r *SQLiteRecorder) MalformedCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM malformed_lines WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
