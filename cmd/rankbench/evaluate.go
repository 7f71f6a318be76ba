// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/rankbench/internal/api"
	"github.com/tomtom215/rankbench/internal/cache"
	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/database"
	"github.com/tomtom215/rankbench/internal/llm"
	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/runner"
	"github.com/tomtom215/rankbench/internal/supervisor"
	"github.com/tomtom215/rankbench/internal/supervisor/services"
)

const shutdownTimeout = 10 * time.Second

type evaluateOptions struct {
	splitFlags
	ranker     string
	maxSamples int
	workers    int
	dbPath     string
	output     string
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run a ranker over a split and report NDCG@k",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(func(c *config.Config) { opts.apply(cmd, c) })
			if err != nil {
				return err
			}
			if opts.output != "text" && opts.output != "json" {
				return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
			}
			report, err := evaluate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, opts.output)
		},
	}

	opts.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&opts.ranker, "ranker", "", "ranker: random, popularity, markov or llm")
	fs.IntVar(&opts.maxSamples, "max-samples", 0, "evaluate only the first N instances")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent ranker calls")
	fs.StringVar(&opts.dbPath, "db", "", "DuckDB results file (overrides database.path)")
	fs.StringVarP(&opts.output, "output", "o", "text", "report format: text or json")
	return cmd
}

func (o *evaluateOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	o.splitFlags.apply(cmd, cfg)
	fs := cmd.Flags()
	if fs.Changed("ranker") {
		cfg.Eval.Ranker = o.ranker
	}
	if fs.Changed("max-samples") {
		cfg.Eval.MaxSamples = o.maxSamples
	}
	if fs.Changed("workers") {
		cfg.Eval.Workers = o.workers
	}
	if fs.Changed("db") {
		cfg.Database.Path = o.dbPath
	}
}

// evaluate wires the dataset, the optional stores and the ranker, and runs
// one evaluation. With metrics enabled the run executes as a one-shot job
// beside the HTTP endpoint under the supervisor tree.
func evaluate(ctx context.Context, cfg *config.Config) (*runner.Report, error) {
	logger := logging.Ctx(ctx)
	metrics.SetAppInfo(version, runtime.Version())

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.New(&cfg.Database)
	switch {
	case errors.Is(err, database.ErrDisabled):
		logger.Debug().Msg("Results store disabled")
	case err != nil:
		return nil, err
	default:
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing database")
			}
		}()
	}

	opts := []runner.Option{runner.WithStore(db)}
	if cfg.Eval.Ranker == "llm" {
		var store *cache.ResponseCache
		if cfg.Cache.Enabled {
			store, err = cache.Open(cache.Config{Path: cfg.Cache.Path, TTL: cfg.Cache.TTL})
			if err != nil {
				return nil, err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Error().Err(err).Msg("Error closing response cache")
				}
			}()
		}
		opts = append(opts, runner.WithCompleter(llm.New(cfg.LLM, store)))
	}

	r := runner.New(cfg, opts...)
	titles := ds.Titles()

	if !cfg.Metrics.Enabled {
		return r.Run(ctx, ds.Interactions, titles)
	}

	var report *runner.Report
	job := services.NewJobService("evaluation", func(ctx context.Context) error {
		var err error
		report, err = r.Run(ctx, ds.Interactions, titles)
		return err
	})
	if err := superviseRun(ctx, cfg, r.Progress(), db, job); err != nil {
		return nil, err
	}
	return report, nil
}

// superviseRun serves the metrics endpoint while job runs and returns the
// job's error once it has finished.
func superviseRun(ctx context.Context, cfg *config.Config, progress *runner.Progress, db *database.DB, job *services.JobService) error {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: shutdownTimeout,
	})
	if err != nil {
		return err
	}

	var pinger api.Pinger
	if db != nil {
		pinger = db
	}
	handler := api.NewHandler(progress, pinger, version)
	server := services.NewHTTPServer(cfg.Metrics.Addr, handler.Router())

	tree.AddEvalService(job)
	tree.AddAPIService(services.NewHTTPServerService(server, shutdownTimeout))

	logging.Ctx(ctx).Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics and health endpoints")

	treeCtx, cancel := context.WithCancel(ctx)
	errCh := tree.ServeBackground(treeCtx)

	// A canceled ctx reaches the job through the tree. The tree can only stop
	// first if it never started the job.
	var treeErr error
	select {
	case <-job.Done():
		cancel()
		treeErr = <-errCh
	case treeErr = <-errCh:
		cancel()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("supervisor stopped before the evaluation finished: %w", treeErr)
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Ctx(ctx).Warn().Err(treeErr).Msg("Supervisor tree stopped with error")
	}
	return job.Wait(context.Background())
}

func writeReport(w io.Writer, report *runner.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteText(w)
}
