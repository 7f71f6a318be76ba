// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package runner executes an evaluation run.
//
// A run builds the split instances on the calling goroutine, presents each
// instance's candidates and target in a seeded shuffled order, fans the
// instances out to eval.workers goroutines, and merges the per-worker
// accumulators in worker order once every worker has returned:
//
//	splits -> present -> [worker 0 .. worker n-1] -> merge -> Compute
//
// Each ranker call is retried up to eval.max_attempts times with a fixed
// delay. Instances that still fail, and answers that are not a permutation of
// the presented list, are recorded and excluded from the metrics. A single
// instance never aborts the run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/database"
	"github.com/tomtom215/rankbench/internal/evaluate"
	"github.com/tomtom215/rankbench/internal/llm"
	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/ranking"
	"github.com/tomtom215/rankbench/internal/sequence"
)

var (
	// ErrNoTargets is returned when the configured split has no held-out items.
	ErrNoTargets = errors.New("runner: split has no targets to evaluate")

	// ErrNoInstances is returned when no user produced an instance.
	ErrNoInstances = errors.New("runner: no instances to evaluate")
)

// Runner evaluates one ranker on one split.
type Runner struct {
	cfg       *config.Config
	store     *database.DB
	completer llm.Completer
	ranker    ranking.Ranker
	progress  *Progress
	barOut    io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists the run. A nil store disables persistence.
func WithStore(db *database.DB) Option {
	return func(r *Runner) { r.store = db }
}

// WithCompleter sets the chat endpoint used by the llm ranker.
func WithCompleter(c llm.Completer) Option {
	return func(r *Runner) { r.completer = c }
}

// WithRanker overrides the ranker named in the configuration.
func WithRanker(rk ranking.Ranker) Option {
	return func(r *Runner) { r.ranker = rk }
}

// WithProgress publishes run progress to p.
func WithProgress(p *Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// WithProgressOutput redirects the progress bar (default stderr).
func WithProgressOutput(w io.Writer) Option {
	return func(r *Runner) { r.barOut = w }
}

// New creates a runner for a validated configuration.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, barOut: os.Stderr}
	for _, opt := range opts {
		opt(r)
	}
	if r.progress == nil {
		r.progress = NewProgress()
	}
	return r
}

// Progress returns the run tracker.
func (r *Runner) Progress() *Progress {
	return r.progress
}

// job is one instance with its presentation order.
type job struct {
	position  int
	instance  *sequence.SplitInstance
	presented []string
}

// outcome is what a worker learned about one job.
type outcome struct {
	status    string
	ranking   []string
	attempts  int
	err       error
	duration  time.Duration
	relevance []int
}

// Run evaluates the configured ranker on interactions. titles feeds the llm
// ranker's prompt and may be nil for the baselines.
func (r *Runner) Run(ctx context.Context, interactions []sequence.Interaction, titles map[string]string) (report *Report, err error) {
	kind := r.cfg.SplitKind()
	if !kind.HasTarget() {
		return nil, fmt.Errorf("%w: %s", ErrNoTargets, kind)
	}

	runID := logging.NewRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.Ctx(ctx)
	started := time.Now()

	idx, err := sequence.NewIndex(interactions)
	if err != nil {
		return nil, err
	}
	splits, err := BuildSplits(idx, SplitOptions{
		Kind:              kind,
		Seed:              r.cfg.Seed,
		Options:           r.cfg.SequenceOptions(),
		SkipPoolExhausted: r.cfg.Eval.SkipPoolExhausted,
	})
	if err != nil {
		return nil, fmt.Errorf("build %s split: %w", kind, err)
	}

	instances := splits.Instances
	if n := r.cfg.Eval.MaxSamples; n > 0 && n < len(instances) {
		instances = instances[:n]
	}
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	rk := r.ranker
	if rk == nil {
		rk, err = ranking.New(r.cfg.Eval.Ranker, ranking.Deps{
			Seed:      r.cfg.Seed,
			Train:     idx.TrainingInteractions(kind),
			Completer: r.completer,
			Prompt:    r.cfg.LLM.Prompt,
			Titles:    titles,
		})
		if err != nil {
			return nil, err
		}
	}

	report = &Report{
		RunID:     runID,
		Ranker:    rk.Name(),
		Split:     kind.String(),
		Seed:      r.cfg.Seed,
		Ks:        append([]int(nil), r.cfg.Eval.Ks...),
		Instances: len(instances),
		Skipped:   len(splits.Skipped),
		StartedAt: started,
	}

	if err := r.createRun(ctx, report, instances); err != nil {
		return nil, err
	}
	defer func() {
		report.Duration = time.Since(started)
		r.finishRun(ctx, report, err)
	}()

	metrics.TrackRun(true)
	defer metrics.TrackRun(false)
	r.progress.start(runID, rk.Name(), kind.String(), len(instances))
	defer r.progress.finish()

	logger.Info().
		Str("ranker", rk.Name()).
		Str("split", kind.String()).
		Int("instances", len(instances)).
		Int("skipped", len(splits.Skipped)).
		Int("workers", r.cfg.Eval.Workers).
		Msg("Evaluation started")

	presented := Present(instances, r.cfg.Seed)
	jobs := make(chan job)
	accs := make([]*evaluate.Accumulator, r.cfg.Eval.Workers)
	counts := make([]workerCounts, len(accs))
	bar := r.newBar(len(instances))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range instances {
			select {
			case jobs <- job{position: i, instance: &instances[i], presented: presented[i]}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := range accs {
		accs[w] = evaluate.NewAccumulator(len(instances)/len(accs) + 1)
		g.Go(func() error {
			for j := range jobs {
				out := r.evaluate(gctx, rk, j)
				if out.status == metrics.StatusOK {
					if err := accs[w].AddStrict(out.relevance); err != nil {
						out.status, out.err = metrics.StatusMalformed, err
					}
				}
				counts[w].add(out.status)
				r.record(gctx, runID, rk.Name(), j, out)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("evaluation interrupted: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	acc := evaluate.NewAccumulator(len(instances))
	for w := range accs {
		acc.Merge(accs[w])
		report.Scored += counts[w].scored
		report.Malformed += counts[w].malformed
		report.Failed += counts[w].failed
	}

	if err := r.computeMetrics(acc, report); err != nil {
		return report, err
	}

	logger.Info().
		Int("scored", report.Scored).
		Int("malformed", report.Malformed).
		Int("failed", report.Failed).
		Float64("mrr", report.MRR).
		Dur("duration", time.Since(started)).
		Msg("Evaluation finished")
	return report, nil
}

func (r *Runner) computeMetrics(acc *evaluate.Accumulator, report *Report) (err error) {
	defer func() {
		metrics.RecordRun(report.Ranker, report.Split, report.NDCG, report.HitRatio, report.MRR, err)
	}()

	ks := report.Ks
	if report.NDCG, err = acc.Compute(ks...); err != nil {
		return fmt.Errorf("compute ndcg: %w", err)
	}
	if report.NDCGStats, err = acc.Stats(ks...); err != nil {
		return fmt.Errorf("compute ndcg stats: %w", err)
	}
	if report.HitRatio, err = acc.HitRatio(ks...); err != nil {
		return fmt.Errorf("compute hit ratio: %w", err)
	}
	if report.MRR, err = acc.MRR(); err != nil {
		return fmt.Errorf("compute mrr: %w", err)
	}
	return nil
}

// evaluate ranks one instance with bounded retry. Malformed answers are not
// retried: the response cache would return the same answer.
func (r *Runner) evaluate(ctx context.Context, rk ranking.Ranker, j job) outcome {
	start := time.Now()
	req := &ranking.Request{
		UserID:     j.instance.UserID,
		Kind:       j.instance.Kind,
		History:    j.instance.Seq,
		Candidates: j.presented,
	}

	maxAttempts := max(r.cfg.Eval.MaxAttempts, 1)
	var out outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.attempts = attempt
		ranked, err := rk.Rank(ctx, req)
		if err == nil {
			err = ranking.CheckPermutation(ranked, j.presented)
		}
		if err == nil {
			metrics.RecordRankAttempt(rk.Name(), nil, false)
			out.status = metrics.StatusOK
			out.ranking = ranked
			out.relevance = evaluate.RelevanceVector(ranked, j.instance.Target)
			break
		}

		out.err = err
		if errors.Is(err, ranking.ErrMalformedOutput) {
			metrics.RecordRankAttempt(rk.Name(), err, false)
			out.status = metrics.StatusMalformed
			out.ranking = ranked
			break
		}

		retry := attempt < maxAttempts && ctx.Err() == nil
		metrics.RecordRankAttempt(rk.Name(), err, retry)
		out.status = metrics.StatusFailed
		if !retry {
			break
		}
		logging.Ctx(ctx).Debug().
			Err(err).
			Str("uid", req.UserID).
			Int("attempt", attempt).
			Msg("Ranker failed, retrying")
		if sleepErr := sleep(ctx, r.cfg.Eval.RetryDelay); sleepErr != nil {
			break
		}
	}

	out.duration = time.Since(start)
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// record publishes one outcome to metrics, progress, the log and the store.
func (r *Runner) record(ctx context.Context, runID, rankerName string, j job, out outcome) {
	metrics.RecordInstance(rankerName, out.status, out.duration)
	r.progress.record(out.status)

	if out.status != metrics.StatusOK {
		logging.Ctx(ctx).Warn().
			Err(out.err).
			Str("uid", j.instance.UserID).
			Str("status", out.status).
			Int("attempts", out.attempts).
			Msg("Instance excluded from metrics")
	}

	if r.store == nil {
		return
	}
	rec := &database.Instance{
		RunID:      runID,
		Position:   j.position,
		UserID:     j.instance.UserID,
		Target:     j.instance.Target,
		Presented:  j.presented,
		Ranking:    out.ranking,
		TargetRank: firstRelevant(out.relevance) + 1,
		Status:     out.status,
		Attempts:   out.attempts,
		Duration:   out.duration,
	}
	if out.err != nil {
		rec.Error = out.err.Error()
	}
	// the instance row outlives a canceled run
	if err := r.store.InsertInstance(context.WithoutCancel(ctx), rec); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int("position", j.position).Msg("Failed to store instance")
	}
}

func (r *Runner) createRun(ctx context.Context, report *Report, instances []sequence.SplitInstance) error {
	if r.store == nil {
		return nil
	}
	cfgJSON, err := json.Marshal(redacted(r.cfg))
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	run := &database.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		Ranker:     report.Ranker,
		Split:      report.Split,
		Seed:       report.Seed,
		Candidates: r.cfg.Candidates,
		Window:     r.cfg.Window,
		Config:     string(cfgJSON),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return err
	}
	return r.store.SaveSplits(ctx, report.RunID, instances)
}

func (r *Runner) finishRun(ctx context.Context, report *Report, runErr error) {
	if r.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if runErr == nil {
		if err := r.store.SaveResults(ctx, report.RunID, report.Results()); err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to store results")
		}
	}
	if err := r.store.FinishRun(ctx, report.RunID, time.Now(), runErr); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to finish run")
	}
}

func (r *Runner) newBar(total int) *progressbar.ProgressBar {
	if !r.cfg.Eval.Progress {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.barOut),
		progressbar.OptionSetDescription("ranking"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.barOut) }),
	)
}

// redacted copies cfg without the API key.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.LLM.APIKey != "" {
		c.LLM.APIKey = "REDACTED"
	}
	return c
}

func firstRelevant(relevance []int) int {
	for i, v := range relevance {
		if v == 1 {
			return i
		}
	}
	return -1
}

type workerCounts struct {
	scored, malformed, failed int
}

func (c *workerCounts) add(status string) {
	switch status {
	case metrics.StatusOK:
		c.scored++
	case metrics.StatusMalformed:
		c.malformed++
	case metrics.StatusFailed:
		c.failed++
	}
}
