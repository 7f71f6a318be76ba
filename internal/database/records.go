// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// Instance is one row of the instances table.
type Instance struct {
	RunID    string
	Position int
	UserID   string
	Target   string

	// Presented is the order the candidates were shown in.
	Presented []string

	// Ranking is the ranker's answer; nil when the instance failed.
	Ranking []string

	// TargetRank is the 1-based position of the target in Ranking, 0 if absent.
	TargetRank int

	Status   string
	Attempts int
	Error    string
	Duration time.Duration
}

// Result is one aggregate metric value. K is 0 for metrics without a cutoff.
type Result struct {
	Metric string
	K      int
	Value  float64
}

// SaveSplits stores the split instances a run evaluates, in one transaction.
func (db *DB) SaveSplits(ctx context.Context, runID string, instances []sequence.SplitInstance) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "splits", time.Since(start), err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO splits (run_id, position, user_id, split, seq, target, candidates)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare split insert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := range instances {
		inst := &instances[i]
		seq, err := encodeList(inst.Seq)
		if err != nil {
			return err
		}
		cands, err := encodeList(inst.Candidates)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, inst.UserID, inst.Kind.String(), seq,
			nullString(inst.Target), cands); err != nil {
			return fmt.Errorf("failed to insert split for user %s: %w", inst.UserID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit splits: %w", err)
	}
	return nil
}

// InsertInstance stores the outcome of one ranked instance.
func (db *DB) InsertInstance(ctx context.Context, inst *Instance) error {
	presented, err := encodeList(inst.Presented)
	if err != nil {
		return err
	}
	var ranking sql.NullString
	if inst.Ranking != nil {
		s, err := encodeList(inst.Ranking)
		if err != nil {
			return err
		}
		ranking = sql.NullString{String: s, Valid: true}
	}
	var targetRank sql.NullInt64
	if inst.TargetRank > 0 {
		targetRank = sql.NullInt64{Int64: int64(inst.TargetRank), Valid: true}
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO instances (run_id, position, user_id, target, presented, ranking, target_rank,
			status, attempts, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.RunID, inst.Position, inst.UserID, nullString(inst.Target), presented, ranking, targetRank,
		inst.Status, inst.Attempts, nullString(inst.Error),
		float64(inst.Duration)/float64(time.Millisecond), time.Now().UTC(),
	)
	metrics.RecordDBQuery("insert", "instances", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to insert instance %d of run %s: %w", inst.Position, inst.RunID, err)
	}
	return nil
}

// Instances returns a run's instances in position order.
func (db *DB) Instances(ctx context.Context, runID string) ([]Instance, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT position, user_id, target, presented, ranking, target_rank, status, attempts, error, duration_ms
		FROM instances WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		metrics.RecordDBQuery("select", "instances", time.Since(start), err)
		return nil, fmt.Errorf("failed to query instances: %w", err)
	}
	defer closeQuietly(rows)

	var out []Instance
	for rows.Next() {
		var (
			inst       = Instance{RunID: runID}
			target     sql.NullString
			presented  string
			ranking    sql.NullString
			targetRank sql.NullInt64
			errText    sql.NullString
			durationMS float64
		)
		if err := rows.Scan(&inst.Position, &inst.UserID, &target, &presented, &ranking, &targetRank,
			&inst.Status, &inst.Attempts, &errText, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		inst.Target = target.String
		inst.TargetRank = int(targetRank.Int64)
		inst.Error = errText.String
		inst.Duration = time.Duration(durationMS * float64(time.Millisecond))
		if inst.Presented, err = decodeList(presented); err != nil {
			return nil, err
		}
		if ranking.Valid {
			if inst.Ranking, err = decodeList(ranking.String); err != nil {
				return nil, err
			}
		}
		out = append(out, inst)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", "instances", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate instances: %w", err)
	}
	return out, nil
}

// InstanceCounts returns the number of instances per status for a run.
func (db *DB) InstanceCounts(ctx context.Context, runID string) (map[string]int, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM instances WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		metrics.RecordDBQuery("select", "instances", time.Since(start), err)
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}
	defer closeQuietly(rows)

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan instance count: %w", err)
		}
		counts[status] = n
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", "instances", time.Since(start), err)
	return counts, err
}

// SaveResults replaces a run's aggregate metrics.
func (db *DB) SaveResults(ctx context.Context, runID string, results []Result) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "results", time.Since(start), err) }()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM results WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}
	for _, r := range results {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO results (run_id, metric, k, value) VALUES (?, ?, ?, ?)`,
			runID, r.Metric, r.K, r.Value); err != nil {
			return fmt.Errorf("failed to insert result %s@%d: %w", r.Metric, r.K, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Results returns a run's aggregate metrics ordered by metric and cutoff.
func (db *DB) Results(ctx context.Context, runID string) ([]Result, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT metric, k, value FROM results WHERE run_id = ? ORDER BY metric, k`, runID)
	if err != nil {
		metrics.RecordDBQuery("select", "results", time.Since(start), err)
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer closeQuietly(rows)

	var out []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Metric, &r.K, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		out = append(out, r)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", "results", time.Since(start), err)
	return out, err
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return out, nil
}
