// Package journal persists deploy and delete pipeline runs in sqlite so a run
// that stopped partway can be resumed from its last completed step.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"cubedeploy/pkg/types"
)

// Operation names recorded in runs.op.
const (
	OpDeploy = "deploy"
	OpDelete = "delete"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	op TEXT NOT NULL,
	model TEXT NOT NULL,
	last_step TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model, id);
`

// Journal is a sqlite-backed run log.
type Journal struct {
	db  *sql.DB
	now func() time.Time
	mu  sync.Mutex
}

// Open opens (creating if needed) the journal at path. ":memory:" keeps it in
// process memory.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection: an in-memory database is per connection, and writes
	// are serialized anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the database.
func (j *Journal) Close() error { return j.db.Close() }

// Ping reports whether the database answers.
func (j *Journal) Ping(ctx context.Context) error { return j.db.PingContext(ctx) }

// Begin records a new running run and returns its id.
func (j *Journal) Begin(ctx context.Context, op, model string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	ts := j.now().UnixNano()
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (op, model, status, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		op, model, types.RunRunning, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

// Step records step as the last completed step of run id.
func (j *Journal) Step(ctx context.Context, id int64, step string) error {
	return j.update(ctx, `UPDATE runs SET last_step = ?, updated_at = ? WHERE id = ?`, step, j.now().UnixNano(), id)
}

// Reopen marks a previously failed run as running again.
func (j *Journal) Reopen(ctx context.Context, id int64) error {
	return j.update(ctx, `UPDATE runs SET status = ?, error = '', updated_at = ? WHERE id = ?`, types.RunRunning, j.now().UnixNano(), id)
}

// Finish sets the final status. A nil cause marks success.
func (j *Journal) Finish(ctx context.Context, id int64, cause error) error {
	status, msg := types.RunSucceeded, ""
	if cause != nil {
		status, msg = types.RunFailed, cause.Error()
	}
	return j.update(ctx, `UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`, status, msg, j.now().UnixNano(), id)
}

// InterruptedError is recorded on runs that were still running when the
// process that owned them went away.
const InterruptedError = "interrupted"

// Interrupt marks every running run as failed so it can be resumed. Call it
// once at startup, before any new run begins. It returns how many runs
// were marked.
func (j *Journal) Interrupt(ctx context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.ExecContext(ctx, `UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE status = ?`,
		types.RunFailed, InterruptedError, j.now().UnixNano(), types.RunRunning)
	if err != nil {
		return 0, fmt.Errorf("interrupt runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("interrupt runs: %w", err)
	}
	return n, nil
}

func (j *Journal) update(ctx context.Context, q string, args ...any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	res, err := j.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const columns = `id, op, model, last_step, status, error, started_at, updated_at`

// Get returns one run.
func (j *Journal) Get(ctx context.Context, id int64) (types.Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+columns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Run{}, ErrNotFound
	}
	return r, err
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT `+columns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	out := []types.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (types.Run, error) {
	var (
		r                types.Run
		started, updated int64
	)
	if err := s.Scan(&r.ID, &r.Op, &r.Model, &r.LastStep, &r.Status, &r.Error, &started, &updated); err != nil {
		return types.Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return r, nil
}
