// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package runner

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/database"
	"github.com/tomtom215/rankbench/internal/evaluate"
	"github.com/tomtom215/rankbench/internal/ranking"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// ratings builds 3 users x 25 ratings. User u rates items u*5+1 .. u*5+25 in
// order, so the universe is items 6..40 and every user has exactly 10 unseen
// items. The last item rated is the test target.
func ratings() []sequence.Interaction {
	var out []sequence.Interaction
	for u := 1; u <= 3; u++ {
		for j := 0; j < 25; j++ {
			out = append(out, sequence.Interaction{
				UserID:    strconv.Itoa(u),
				ItemID:    strconv.Itoa(u*5 + j + 1),
				Rating:    4,
				Timestamp: int64(1000*u + j),
			})
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Eval.Progress = false
	cfg.Eval.RetryDelay = 0
	cfg.Eval.Workers = 2
	cfg.Eval.Ks = []int{1, 5, 10}
	return cfg
}

// oracleRanker puts the true target first.
type oracleRanker struct{ targets map[string]string }

func (o *oracleRanker) Name() string { return "oracle" }

func (o *oracleRanker) Rank(_ context.Context, req *ranking.Request) ([]string, error) {
	out := []string{o.targets[req.UserID]}
	for _, c := range req.Candidates {
		if c != o.targets[req.UserID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func lastItems(in []sequence.Interaction) map[string]string {
	last := map[string]string{}
	for _, row := range in {
		last[row.UserID] = row.ItemID
	}
	return last
}

// flakyRanker fails its first failures calls for every user, then returns
// the candidates unchanged.
type flakyRanker struct {
	failures int32
	calls    map[string]*atomic.Int32
	err      error
}

func newFlaky(failures int32, err error) *flakyRanker {
	return &flakyRanker{
		failures: failures,
		err:      err,
		calls:    map[string]*atomic.Int32{"1": {}, "2": {}, "3": {}},
	}
}

func (f *flakyRanker) Name() string { return "flaky" }

func (f *flakyRanker) Rank(_ context.Context, req *ranking.Request) ([]string, error) {
	if f.calls[req.UserID].Add(1) <= f.failures {
		return nil, f.err
	}
	return append([]string(nil), req.Candidates...), nil
}

func TestRun_Oracle(t *testing.T) {
	t.Parallel()

	data := ratings()
	progress := NewProgress()
	r := New(testConfig(), WithRanker(&oracleRanker{targets: lastItems(data)}), WithProgress(progress))

	report, err := r.Run(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Instances != 3 || report.Scored != 3 || report.Malformed != 0 || report.Failed != 0 {
		t.Errorf("counts = %+v", report)
	}
	for _, k := range []int{1, 5, 10} {
		if report.NDCG[k] != 1 || report.HitRatio[k] != 1 {
			t.Errorf("k=%d: NDCG %v HR %v, want 1", k, report.NDCG[k], report.HitRatio[k])
		}
	}
	if report.MRR != 1 {
		t.Errorf("MRR = %v, want 1", report.MRR)
	}
	if report.RunID == "" || report.Ranker != "oracle" || report.Split != "test" {
		t.Errorf("report header = %+v", report)
	}

	snap := progress.Snapshot()
	if snap.State != StateFinished || snap.Done != 3 || snap.Total != 3 || snap.RunID != report.RunID {
		t.Errorf("progress = %+v", snap)
	}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	flaky := newFlaky(2, errors.New("upstream 503"))
	r := New(testConfig(), WithRanker(flaky))

	report, err := r.Run(context.Background(), ratings(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scored != 3 || report.Failed != 0 {
		t.Errorf("scored %d failed %d, want 3 and 0", report.Scored, report.Failed)
	}
	for uid, n := range flaky.calls {
		if n.Load() != 3 {
			t.Errorf("user %s ranked %d times, want 3", uid, n.Load())
		}
	}
}

func TestRun_ExhaustedRetriesExcludeInstance(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Eval.MaxAttempts = 2
	flaky := newFlaky(100, errors.New("upstream 503"))

	report, err := New(cfg, WithRanker(flaky)).Run(context.Background(), ratings(), nil)
	if !errors.Is(err, evaluate.ErrEmptyAccumulator) {
		t.Fatalf("Run() error = %v, want ErrEmptyAccumulator", err)
	}
	if report == nil || report.Failed != 3 || report.Scored != 0 {
		t.Fatalf("report = %+v", report)
	}
	for uid, n := range flaky.calls {
		if n.Load() != 2 {
			t.Errorf("user %s ranked %d times, want max_attempts 2", uid, n.Load())
		}
	}
}

// truncatingRanker drops the last candidate for one user.
type truncatingRanker struct{ victim string }

func (t *truncatingRanker) Name() string { return "truncating" }

func (t *truncatingRanker) Rank(_ context.Context, req *ranking.Request) ([]string, error) {
	out := append([]string(nil), req.Candidates...)
	if req.UserID == t.victim {
		out = out[:len(out)-1]
	}
	return out, nil
}

func TestRun_MalformedExcludedNotRetried(t *testing.T) {
	t.Parallel()

	report, err := New(testConfig(), WithRanker(&truncatingRanker{victim: "2"})).
		Run(context.Background(), ratings(), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Scored != 2 || report.Malformed != 1 {
		t.Errorf("scored %d malformed %d, want 2 and 1", report.Scored, report.Malformed)
	}
}

func TestRun_MaxSamples(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Eval.MaxSamples = 2
	report, err := New(cfg).Run(context.Background(), ratings(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Instances != 2 || report.Scored != 2 {
		t.Errorf("instances %d scored %d, want 2", report.Instances, report.Scored)
	}
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"random", "popularity", "markov"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			cfg.Eval.Ranker = name
			cfg.Eval.Workers = 3

			a, err := New(cfg).Run(context.Background(), ratings(), nil)
			if err != nil {
				t.Fatal(err)
			}
			b, err := New(cfg).Run(context.Background(), ratings(), nil)
			if err != nil {
				t.Fatal(err)
			}
			for _, k := range cfg.Eval.Ks {
				if math.Abs(a.NDCG[k]-b.NDCG[k]) > 1e-12 {
					t.Errorf("NDCG@%d differs across runs: %v vs %v", k, a.NDCG[k], b.NDCG[k])
				}
			}
			if a.RunID == b.RunID {
				t.Error("two runs share a run id")
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Split = "train"
	if _, err := New(cfg).Run(context.Background(), ratings(), nil); !errors.Is(err, ErrNoTargets) {
		t.Errorf("train split error = %v, want ErrNoTargets", err)
	}

	cfg = testConfig()
	cfg.Candidates = 11 // only 10 unseen items per user
	if _, err := New(cfg).Run(context.Background(), ratings(), nil); !errors.Is(err, ErrNoInstances) {
		t.Errorf("all users skipped error = %v, want ErrNoInstances", err)
	}

	cfg.Eval.SkipPoolExhausted = false
	if _, err := New(cfg).Run(context.Background(), ratings(), nil); !errors.Is(err, sequence.ErrPoolExhausted) {
		t.Errorf("strict pool error = %v, want ErrPoolExhausted", err)
	}

	if _, err := New(testConfig()).Run(context.Background(), nil, nil); !errors.Is(err, sequence.ErrNoInteractions) {
		t.Errorf("empty table error = %v, want ErrNoInteractions", err)
	}

	cfg = testConfig()
	cfg.Eval.Ranker = "llm" // no completer
	if _, err := New(cfg).Run(context.Background(), ratings(), nil); err == nil {
		t.Error("llm ranker without completer succeeded")
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), WithRanker(newFlaky(0, nil))).Run(ctx, ratings(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_Store(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.LLM.APIKey = "sk-secret"
	data := ratings()
	ctx := context.Background()

	report, err := New(cfg, WithStore(db), WithRanker(&truncatingRanker{victim: "3"})).Run(ctx, data, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	run, err := db.GetRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run.Status != database.RunCompleted || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
	if strings.Contains(run.Config, "sk-secret") {
		t.Error("stored config leaks the API key")
	}

	counts, err := db.InstanceCounts(ctx, report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if counts["ok"] != 2 || counts["malformed"] != 1 {
		t.Errorf("instance counts = %v", counts)
	}

	results, err := db.Results(ctx, report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if want := 2*len(cfg.Eval.Ks) + 1; len(results) != want {
		t.Errorf("stored %d results, want %d", len(results), want)
	}

	instances, _ := db.Instances(ctx, report.RunID)
	for _, inst := range instances {
		if inst.Status == "ok" && inst.TargetRank == 0 {
			t.Errorf("scored instance %d has no target rank", inst.Position)
		}
		if len(inst.Presented) != cfg.Candidates+1 {
			t.Errorf("instance %d presented %d items", inst.Position, len(inst.Presented))
		}
	}
}

func TestReport_WriteText(t *testing.T) {
	t.Parallel()

	report, err := New(testConfig()).Run(context.Background(), ratings(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := report.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ranker", "random", "NDCG", "MRR", "3 scored"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report text missing %q:\n%s", want, buf.String())
		}
	}
}
