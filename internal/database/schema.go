// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema creation.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	for _, query := range getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// getTableCreationQueries returns the table DDL. List columns (seq,
// candidates, rankings) are stored as JSON text.
func getTableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			ranker VARCHAR NOT NULL,
			split VARCHAR NOT NULL,
			seed BIGINT NOT NULL,
			candidates INTEGER NOT NULL,
			window_size INTEGER NOT NULL,
			config VARCHAR,
			status VARCHAR NOT NULL DEFAULT 'running',
			error VARCHAR
		);`,

		`CREATE TABLE IF NOT EXISTS splits (
			run_id VARCHAR NOT NULL,
			position INTEGER NOT NULL,
			user_id VARCHAR NOT NULL,
			split VARCHAR NOT NULL,
			seq VARCHAR NOT NULL,
			target VARCHAR,
			candidates VARCHAR NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,

		`CREATE TABLE IF NOT EXISTS instances (
			run_id VARCHAR NOT NULL,
			position INTEGER NOT NULL,
			user_id VARCHAR NOT NULL,
			target VARCHAR,
			presented VARCHAR NOT NULL,
			ranking VARCHAR,
			target_rank INTEGER,
			status VARCHAR NOT NULL,
			attempts INTEGER NOT NULL,
			error VARCHAR,
			duration_ms DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,

		`CREATE TABLE IF NOT EXISTS results (
			run_id VARCHAR NOT NULL,
			metric VARCHAR NOT NULL,
			k INTEGER NOT NULL,
			value DOUBLE NOT NULL,
			PRIMARY KEY (run_id, metric, k)
		);`,
	}
}

func getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_instances_status ON instances(run_id, status);`,
	}
}
