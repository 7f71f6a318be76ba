// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rankbench/internal/dataset"
	"github.com/tomtom215/rankbench/internal/runner"
)

// writeDataset lays out an ml-100k directory with three users of 25 ratings
// each. Items run from 7 to 41, so every user has exactly 10 unseen items.
func writeDataset(t *testing.T, dir string) {
	t.Helper()
	root := filepath.Join(dir, dataset.ArchiveDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	var ratings, items strings.Builder
	for u := 1; u <= 3; u++ {
		for j := 0; j < 25; j++ {
			fmt.Fprintf(&ratings, "%d\t%d\t4\t%d\n", u, u*5+j+1, 1000*u+j)
		}
	}
	genres := strings.Repeat("|0", len(dataset.Genres))
	for i := 7; i <= 41; i++ {
		fmt.Fprintf(&items, "%d|Movie %d (1995)|01-Jan-1995||%s\n", i, i, genres)
	}
	users := "1|24|M|technician|85711\n2|53|F|other|94043\n3|23|M|writer|32067\n"

	for name, content := range map[string]string{
		dataset.RatingsFile: ratings.String(),
		dataset.ItemsFile:   items.String(),
		dataset.UsersFile:   users,
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// writeConfig returns a config file pointing at a fresh fixture dataset.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	writeDataset(t, dir)

	cfg := fmt.Sprintf(`dataset:
  dir: %q
  auto_download: false
eval:
  progress: false
  retry_delay: 0s
cache:
  enabled: false
logging:
  level: error
%s`, dir, extra)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "rankbench "+version) {
		t.Errorf("version output = %q", out)
	}
}

func TestSplitsCommand(t *testing.T) {
	cfgPath := writeConfig(t, "")

	tests := []struct {
		split         string
		wantPresented bool
	}{
		{"test", true},
		{"validation", true},
		{"train", false},
	}
	for _, tt := range tests {
		t.Run(tt.split, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "splits.jsonl")
			if _, err := execute(t, "--config", cfgPath, "splits", "--split", tt.split, "--out", out); err != nil {
				t.Fatalf("splits error = %v", err)
			}

			f, err := os.Open(out)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			lines := 0
			sc := bufio.NewScanner(f)
			for sc.Scan() {
				var rec struct {
					UID        string   `json:"uid"`
					Split      string   `json:"split"`
					Seq        []string `json:"seq"`
					Target     string   `json:"target"`
					Candidates []string `json:"candidates"`
					Presented  []string `json:"presented"`
				}
				if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
					t.Fatalf("line %d: %v", lines+1, err)
				}
				if rec.Split != tt.split {
					t.Errorf("split = %q, want %q", rec.Split, tt.split)
				}
				if len(rec.Candidates) != 10 {
					t.Errorf("%d candidates, want 10", len(rec.Candidates))
				}
				if got := len(rec.Presented) > 0; got != tt.wantPresented {
					t.Errorf("presented = %v, want present %v", rec.Presented, tt.wantPresented)
				}
				if tt.wantPresented && len(rec.Presented) != 11 {
					t.Errorf("presented %d items, want 11", len(rec.Presented))
				}
				lines++
			}
			if lines != 3 {
				t.Errorf("wrote %d instances, want 3", lines)
			}
		})
	}
}

func TestEvaluateCommand(t *testing.T) {
	cfgPath := writeConfig(t, "")

	t.Run("json report", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "evaluate", "--ranker", "popularity", "-o", "json")
		if err != nil {
			t.Fatalf("evaluate error = %v", err)
		}
		var report runner.Report
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("decode report: %v\n%s", err, out)
		}
		if report.Ranker != "popularity" || report.Split != "test" {
			t.Errorf("report = %s/%s", report.Ranker, report.Split)
		}
		if report.Instances != 3 || report.Scored != 3 {
			t.Errorf("instances = %d scored = %d, want 3/3", report.Instances, report.Scored)
		}
		for _, k := range []int{1, 5, 10} {
			if v, ok := report.NDCG[k]; !ok || v < 0 || v > 1 {
				t.Errorf("NDCG@%d = %v (present %v)", k, v, ok)
			}
		}
	})

	t.Run("text report", func(t *testing.T) {
		out, err := execute(t, "--config", cfgPath, "evaluate", "--ranker", "random", "--max-samples", "2")
		if err != nil {
			t.Fatalf("evaluate error = %v", err)
		}
		for _, want := range []string{"ranker", "NDCG", "MRR"} {
			if !strings.Contains(out, want) {
				t.Errorf("text report missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("persists to database", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "runs.duckdb")
		if _, err := execute(t, "--config", cfgPath, "evaluate", "--db", db, "-o", "json"); err != nil {
			t.Fatalf("evaluate error = %v", err)
		}
		if _, err := os.Stat(db); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("invalid flags", func(t *testing.T) {
		tests := [][]string{
			{"evaluate", "--ranker", "oracle"},
			{"evaluate", "--split", "train"},
			{"evaluate", "-o", "yaml"},
			{"evaluate", "--candidates", "11"},
		}
		for _, args := range tests {
			if _, err := execute(t, append([]string{"--config", cfgPath}, args...)...); err == nil {
				t.Errorf("%v: expected error", args)
			}
		}
	})
}

func TestEvaluateCommand_Supervised(t *testing.T) {
	cfgPath := writeConfig(t, "metrics:\n  enabled: true\n  addr: 127.0.0.1:0\n")

	out, err := execute(t, "--config", cfgPath, "evaluate", "--ranker", "markov", "-o", "json")
	if err != nil {
		t.Fatalf("evaluate error = %v", err)
	}
	var report runner.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if report.Scored != 3 {
		t.Errorf("scored = %d, want 3", report.Scored)
	}
}
