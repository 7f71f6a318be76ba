// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package config loads rankbench configuration.
//
// Sources are layered, later layers win:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, or the first of DefaultConfigPaths)
//  3. Environment variables (explicit mapping in envTransformFunc)
//  4. Command-line flags, applied by the CLI after Load
//
// Example YAML:
//
//	split: test
//	seed: 42
//	candidates: 10
//	window: 10
//	dataset:
//	  dir: ./data
//	  filter: "rating >= 4"
//	eval:
//	  ranker: llm
//	  ks: [1, 5, 10]
//	  workers: 4
//	llm:
//	  model: gpt-4o-mini
//	  temperature: 0
//	cache:
//	  enabled: true
//	  path: ./data/llm-cache
package config

import (
	"time"

	"github.com/tomtom215/rankbench/internal/sequence"
)

// Config is the complete rankbench configuration.
type Config struct {
	// Split selects the evaluated window: train, validation or test.
	Split string `koanf:"split" validate:"split"`

	// Seed drives candidate sampling, presentation order and the random ranker.
	Seed int64 `koanf:"seed"`

	// Candidates is the number of negative items per instance.
	Candidates int `koanf:"candidates" validate:"min=1"`

	// Window is W in history[-W:...].
	Window int `koanf:"window" validate:"min=2"`

	Dataset  DatasetConfig  `koanf:"dataset"`
	Eval     EvalConfig     `koanf:"eval"`
	LLM      LLMConfig      `koanf:"llm"`
	Cache    CacheConfig    `koanf:"cache"`
	Database DatabaseConfig `koanf:"database"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatasetConfig locates MovieLens 100k.
type DatasetConfig struct {
	// Dir holds the extracted ml-100k directory and the downloaded archive.
	Dir string `koanf:"dir" validate:"required"`

	// URL of ml-100k.zip.
	URL string `koanf:"url" validate:"required,url"`

	// AutoDownload fetches the archive when u.data is missing.
	AutoDownload bool `koanf:"auto_download"`

	// DownloadTimeout bounds the archive download.
	DownloadTimeout time.Duration `koanf:"download_timeout"`

	// Filter is an optional CEL expression over rating, timestamp, user_id and
	// item_id. Rows for which it is false are dropped before splitting.
	Filter string `koanf:"filter"`
}

// EvalConfig controls an evaluation run.
type EvalConfig struct {
	// Ranker is random, popularity, markov or llm.
	Ranker string `koanf:"ranker" validate:"oneof=random popularity markov llm"`

	// Ks are the NDCG and hit-ratio cutoffs.
	Ks []int `koanf:"ks" validate:"required,dive,min=1"`

	// Workers is the number of concurrent ranker calls.
	Workers int `koanf:"workers" validate:"min=1,max=256"`

	// MaxSamples limits the run to the first N instances (0 = all).
	MaxSamples int `koanf:"max_samples" validate:"min=0"`

	// SkipPoolExhausted skips users with too few candidate items instead of
	// failing the run.
	SkipPoolExhausted bool `koanf:"skip_pool_exhausted"`

	// MaxAttempts is how often one instance is tried before it is recorded as
	// failed.
	MaxAttempts int `koanf:"max_attempts" validate:"min=1,max=20"`

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// Progress renders a progress bar on stderr.
	Progress bool `koanf:"progress"`
}

// LLMConfig configures the chat-completions endpoint.
type LLMConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	APIKey      string        `koanf:"api_key"`
	Model       string        `koanf:"model" validate:"required"`
	Temperature float64       `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `koanf:"max_tokens" validate:"min=1"`
	Timeout     time.Duration `koanf:"timeout"`

	// RateLimit is the sustained request rate per second (0 = unlimited).
	RateLimit float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst     int     `koanf:"burst" validate:"min=1"`

	// Prompt is a text/template rendered with the watched and candidate titles.
	Prompt string `koanf:"prompt" validate:"required"`

	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker in front of the LLM endpoint.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32 `koanf:"max_failures" validate:"min=1"`

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// CacheConfig enables the on-disk LLM response cache.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
}

// DatabaseConfig configures the DuckDB results store. An empty path disables
// persistence.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// MetricsConfig controls the Prometheus endpoint served during evaluate.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SplitKind returns the parsed split. Call after Validate.
func (c *Config) SplitKind() sequence.SplitKind {
	kind, err := sequence.ParseSplitKind(c.Split)
	if err != nil {
		return sequence.SplitTest
	}
	return kind
}

// SequenceOptions returns window and sample sizes for the sequence builder.
func (c *Config) SequenceOptions() sequence.Options {
	return sequence.Options{
		WindowSize: c.Window,
		SampleSize: c.Candidates,
	}
}

// DefaultPrompt instructs the model to order numbered candidates. It is rendered
// with .History (watched titles, oldest first) and .Candidates (titles in
// presentation order).
const DefaultPrompt = `You are a movie recommender. The user has watched, in order: {{join .History "; "}}.
Rank the following movies by how likely the user is to watch them next, most likely first.
{{range $i, $c := .Candidates}}{{inc $i}}. {{$c}}
{{end}}Answer with every candidate number exactly once, comma-separated, and nothing else.`
