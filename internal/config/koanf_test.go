// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/rankbench/internal/sequence"
)

// TestDefaultConfig verifies that defaultConfig() returns the canonical setup.
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Split != "test" {
		t.Errorf("Split = %q, want test", cfg.Split)
	}
	if cfg.Candidates != 10 || cfg.Window != 10 {
		t.Errorf("Candidates/Window = %d/%d, want 10/10", cfg.Candidates, cfg.Window)
	}
	if !reflect.DeepEqual(cfg.Eval.Ks, []int{1, 5, 10}) {
		t.Errorf("Eval.Ks = %v, want [1 5 10]", cfg.Eval.Ks)
	}
	if cfg.Eval.MaxAttempts != 4 {
		t.Errorf("Eval.MaxAttempts = %d, want 4", cfg.Eval.MaxAttempts)
	}
	if cfg.LLM.Prompt != DefaultPrompt {
		t.Error("LLM.Prompt should default to DefaultPrompt")
	}
	if cfg.Database.Path != "" {
		t.Errorf("Database.Path = %q, want empty (disabled)", cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rankbench.yaml")
	yaml := `
split: validation
seed: 7
candidates: 20
window: 15
dataset:
  dir: /tmp/ml
  filter: "rating >= 4"
eval:
  ranker: popularity
  ks: [5, 10, 20]
  workers: 2
  retry_delay: 500ms
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.SplitKind() != sequence.SplitValidation {
		t.Errorf("SplitKind() = %v, want validation", cfg.SplitKind())
	}
	if cfg.Seed != 7 {
		t.Errorf("Seed = %d, want 7", cfg.Seed)
	}
	if got := cfg.SequenceOptions(); got.WindowSize != 15 || got.SampleSize != 20 {
		t.Errorf("SequenceOptions() = %+v", got)
	}
	if cfg.Dataset.Filter != "rating >= 4" {
		t.Errorf("Dataset.Filter = %q", cfg.Dataset.Filter)
	}
	if !reflect.DeepEqual(cfg.Eval.Ks, []int{5, 10, 20}) {
		t.Errorf("Eval.Ks = %v", cfg.Eval.Ks)
	}
	if cfg.Eval.RetryDelay != 500*time.Millisecond {
		t.Errorf("Eval.RetryDelay = %v, want 500ms", cfg.Eval.RetryDelay)
	}
	// untouched sections keep defaults
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want default", cfg.LLM.Model)
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("seed: 7\neval:\n  workers: 2\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("RANKBENCH_SEED", "99")
	t.Setenv("RANKBENCH_KS", "1, 3,20")
	t.Setenv("RANKBENCH_RANKER", "llm")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Seed != 99 {
		t.Errorf("Seed = %d, want 99 from env", cfg.Seed)
	}
	if cfg.Eval.Workers != 2 {
		t.Errorf("Eval.Workers = %d, want 2 from file", cfg.Eval.Workers)
	}
	if !reflect.DeepEqual(cfg.Eval.Ks, []int{1, 3, 20}) {
		t.Errorf("Eval.Ks = %v, want [1 3 20]", cfg.Eval.Ks)
	}
	if cfg.Eval.Ranker != "llm" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("Ranker/APIKey = %q/%q", cfg.Eval.Ranker, cfg.LLM.APIKey)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("LLM.Timeout = %v, want 5s", cfg.LLM.Timeout)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadFile() succeeded for a missing file")
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("RANKBENCH_SPLIT", "holdout")
		_, err := LoadFile("")
		if err == nil || !strings.Contains(err.Error(), "split") {
			t.Errorf("LoadFile() error = %v, want split validation error", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("seed: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	if got := findConfigFile(); got == filepath.Join(dir, "missing.yaml") {
		t.Error("findConfigFile() returned a path that does not exist")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"RANKBENCH_SEED", "seed"},
		{"RANKBENCH_KS", "eval.ks"},
		{"LLM_API_KEY", "llm.api_key"},
		{"OPENAI_API_KEY", "llm.api_key"},
		{"DUCKDB_PATH", "database.path"},
		{"LOG_LEVEL", "logging.level"},
		{"LLM_BREAKER_MAX_FAILURES", "llm.circuit_breaker.max_failures"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestValidate_CrossField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "llm ranker without key",
			mutate:  func(c *Config) { c.Eval.Ranker = "llm" },
			wantErr: true,
		},
		{
			name: "llm ranker with key",
			mutate: func(c *Config) {
				c.Eval.Ranker = "llm"
				c.LLM.APIKey = "sk"
			},
		},
		{
			name: "llm ranker on localhost without key",
			mutate: func(c *Config) {
				c.Eval.Ranker = "llm"
				c.LLM.BaseURL = "http://127.0.0.1:11434/v1"
			},
		},
		{
			name: "llm ranker with broken prompt",
			mutate: func(c *Config) {
				c.Eval.Ranker = "llm"
				c.LLM.APIKey = "sk"
				c.LLM.Prompt = "{{range .History}"
			},
			wantErr: true,
		},
		{
			name: "llm ranker with ftp url",
			mutate: func(c *Config) {
				c.Eval.Ranker = "llm"
				c.LLM.APIKey = "sk"
				c.LLM.BaseURL = "ftp://example.com"
			},
			wantErr: true,
		},
		{
			name: "cache enabled without path",
			mutate: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.Path = ""
			},
			wantErr: true,
		},
		{
			name: "metrics enabled with bad addr",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = "9464"
			},
			wantErr: true,
		},
		{
			name:    "window too small",
			mutate:  func(c *Config) { c.Window = 1 },
			wantErr: true,
		},
		{
			name:    "unknown ranker",
			mutate:  func(c *Config) { c.Eval.Ranker = "bm25" },
			wantErr: true,
		},
		{
			name:    "zero cutoff",
			mutate:  func(c *Config) { c.Eval.Ks = []int{0} },
			wantErr: true,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ErrInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Cache.Path = ""
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
	}
}
