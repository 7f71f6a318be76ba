// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/rankbench/internal/metrics"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one row of the runs table.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Ranker     string
	Split      string
	Seed       int64
	Candidates int
	Window     int

	// Config is the effective configuration as JSON.
	Config string

	Status string
	Error  string
}

// CreateRun inserts a run in the running state.
func (db *DB) CreateRun(ctx context.Context, run *Run) error {
	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, ranker, split, seed, candidates, window_size, config, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.Ranker, run.Split, run.Seed,
		run.Candidates, run.Window, run.Config, RunRunning,
	)
	metrics.RecordDBQuery("insert", "runs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	run.Status = RunRunning
	return nil
}

// FinishRun marks a run completed, or failed when runErr is non-nil.
func (db *DB) FinishRun(ctx context.Context, runID string, finishedAt time.Time, runErr error) error {
	status, message := RunCompleted, ""
	if runErr != nil {
		status, message = RunFailed, runErr.Error()
	}

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, error = ?
		WHERE run_id = ?`,
		finishedAt.UTC(), status, nullString(message), runID,
	)
	metrics.RecordDBQuery("update", "runs", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

const runColumns = `run_id, started_at, finished_at, ranker, split, seed, candidates, window_size, config, status, error`

// GetRun returns a single run.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	metrics.RecordDBQuery("select", "runs", time.Since(start), ignoreNoRows(err))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("select", "runs", time.Since(start), err)
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer closeQuietly(rows)

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", "runs", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		finished sql.NullTime
		cfg      sql.NullString
		runErr   sql.NullString
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Ranker, &run.Split, &run.Seed,
		&run.Candidates, &run.Window, &cfg, &run.Status, &runErr); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	run.Config = cfg.String
	run.Error = runErr.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
