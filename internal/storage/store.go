package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store defines the interface for the run history.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	RecordAction(ctx context.Context, action *Action) error
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	RecentActions(ctx context.Context, limit int) ([]Action, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertRun    *sql.Stmt
	insertAction *sql.Stmt
	recentRuns   *sql.Stmt
	recentAction *sql.Stmt
}

// Open opens (creating if needed) the database at path, runs migrations and
// returns a ready store together with the underlying *sql.DB.
func Open(path string) (*SQLiteStore, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}
	return store, db, nil
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertRun, err = s.db.Prepare(`
		INSERT INTO runs (started_at, triggered_by, days, rewritten, skipped, bad_lines, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertAction, err = s.db.Prepare(`
		INSERT INTO audit_log (action, day, detail, ts) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.recentRuns, err = s.db.Prepare(`
		SELECT id, started_at, triggered_by, days, rewritten, skipped, bad_lines, duration_ms, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	`)
	if err != nil {
		return err
	}

	s.recentAction, err = s.db.Prepare(`
		SELECT id, action, day, detail, ts
		FROM audit_log ORDER BY ts DESC, id DESC LIMIT ?
	`)
	if err != nil {
		return err
	}

	return nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RecordRun inserts an aggregation pass. StartedAt defaults to now and
// run.ID is populated.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	res, err := s.insertRun.ExecContext(ctx,
		formatTimestamp(run.StartedAt), string(run.Trigger),
		run.Days, run.Rewritten, run.Skipped, run.BadLines,
		run.Duration.Milliseconds(), run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	run.ID, err = res.LastInsertId()
	return err
}

// RecordAction inserts an audit row. At defaults to now and action.ID is
// populated.
func (s *SQLiteStore) RecordAction(ctx context.Context, action *Action) error {
	if action.At.IsZero() {
		action.At = time.Now()
	}
	res, err := s.insertAction.ExecContext(ctx,
		action.Kind, action.Day, action.Detail, formatTimestamp(action.At),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	action.ID, err = res.LastInsertId()
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.recentRuns.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt, trigger string
	var durationMS int64
	if err := row.Scan(
		&r.ID, &startedAt, &trigger, &r.Days, &r.Rewritten,
		&r.Skipped, &r.BadLines, &durationMS, &r.Error,
	); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt, _ = parseTimestamp(startedAt)
	r.Trigger = Trigger(trigger)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return &r, nil
}

// RecentActions returns up to limit audit rows, newest first.
func (s *SQLiteStore) RecentActions(ctx context.Context, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.recentAction.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		var a Action
		var ts string
		if err := rows.Scan(&a.ID, &a.Kind, &a.Day, &a.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.At, _ = parseTimestamp(ts)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// PruneBefore deletes runs and audit rows older than before and returns the
// number of rows removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	ts := formatTimestamp(before)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	runs, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM audit_log WHERE ts < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("prune audit log: %w", err)
	}
	actions, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return runs + actions, tx.Commit()
}

// GetStats returns aggregate statistics about the history.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0) FROM runs",
	).Scan(&stats.TotalRuns, &stats.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&stats.TotalActions)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}

	if stats.TotalRuns > 0 {
		runs, err := s.RecentRuns(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			stats.LastRun = &runs[0]
		}
	}

	return stats, nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertRun, s.insertAction, s.recentRuns, s.recentAction,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
