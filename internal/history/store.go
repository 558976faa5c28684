// Package history archives completed pipeline runs in SQLite.
//
// The authoritative last-run record is the JSON state document; this store
// is the durable, queryable archive behind it. It keeps one row per run and
// one row per parsed upload result, and survives any number of state-file
// resets. The archive is optional: a nil *Store is a valid no-op receiver.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"marketcast/internal/state"
	"marketcast/internal/uploads"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on any schema change; a mismatched database must
// be deleted and recreated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the on-disk schema version is not the one this
// binary expects.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Run is one archived pipeline run.
type Run struct {
	RunID      string     `json:"run_id"`
	RunKey     string     `json:"run_key,omitempty"`
	Profile    string     `json:"profile,omitempty"`
	StartedBy  string     `json:"started_by,omitempty"`
	Forced     bool       `json:"forced,omitempty"`
	Status     string     `json:"status"`
	ErrorStep  string     `json:"error_step,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store manages the run archive. All methods are safe on a nil receiver so
// callers need no branching when the archive is disabled.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// RecordStart inserts the row for a run that just began.
func (s *Store) RecordStart(ctx context.Context, runState state.RunState) error {
	if s == nil {
		return nil
	}
	startedAt := time.Now().UTC()
	if runState.StartedAt != nil {
		startedAt = runState.StartedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, run_key, profile, started_by, forced, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runState.RunID,
		runState.PendingRunKey,
		runState.Profile,
		string(runState.StartedBy),
		boolToInt(runState.Forced),
		string(runState.Status),
		startedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordFinish updates the run row with its terminal status and archives the
// upload results parsed from this run.
func (s *Store) RecordFinish(ctx context.Context, runState state.RunState, results []uploads.Result) error {
	if s == nil {
		return nil
	}
	finishedAt := time.Now().UTC()
	if runState.FinishedAt != nil {
		finishedAt = runState.FinishedAt.UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_step = ?, finished_at = ?
		WHERE run_id = ?`,
		string(runState.Status),
		runState.ErrorStep,
		finishedAt.Format(time.RFC3339Nano),
		runState.RunID,
	); err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}

	for _, result := range results {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_uploads (run_id, kind, video_id, privacy, reason, skipped, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runState.RunID,
			result.Kind,
			result.ID,
			result.Privacy,
			result.Reason,
			boolToInt(result.Skipped),
			result.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("record upload result: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, run_key, profile, started_by, forced, status, error_step, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run        Run
			forced     int
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.RunKey, &run.Profile, &run.StartedBy,
			&forced, &run.Status, &run.ErrorStep, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.Forced = forced != 0
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			run.StartedAt = ts
		}
		if finishedAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				run.FinishedAt = &ts
			}
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
