// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"rankbench.yaml",
	"rankbench.yml",
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They reproduce the canonical
// setup: test split, 10 candidates, window 10.
func defaultConfig() *Config {
	return &Config{
		Split:      "test",
		Seed:       42,
		Candidates: 10,
		Window:     10,
		Dataset: DatasetConfig{
			Dir:             "./data",
			URL:             "https://files.grouplens.org/datasets/movielens/ml-100k.zip",
			AutoDownload:    true,
			DownloadTimeout: 5 * time.Minute,
			Filter:          "",
		},
		Eval: EvalConfig{
			Ranker:            "random",
			Ks:                []int{1, 5, 10},
			Workers:           4,
			MaxSamples:        0,
			SkipPoolExhausted: true,
			MaxAttempts:       4,
			RetryDelay:        2 * time.Second,
			Progress:          true,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKey:      "",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			MaxTokens:   256,
			Timeout:     60 * time.Second,
			RateLimit:   2,
			Burst:       4,
			Prompt:      DefaultPrompt,
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "./data/llm-cache",
			TTL:     0, // never expires
		},
		Database: DatabaseConfig{
			Path:      "",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Caller: false,
		},
	}
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	return defaultConfig()
}

// Load reads configuration from defaults, the config file found by
// findConfigFile and the environment.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// entry of DefaultConfigPaths, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as
// strings from the environment.
var sliceConfigPaths = []string{
	"eval.ks",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Element conversion (string to int) happens in Unmarshal.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"rankbench_split":      "split",
	"rankbench_seed":       "seed",
	"rankbench_candidates": "candidates",
	"rankbench_window":     "window",

	"rankbench_data_dir":         "dataset.dir",
	"rankbench_dataset_url":      "dataset.url",
	"rankbench_auto_download":    "dataset.auto_download",
	"rankbench_download_timeout": "dataset.download_timeout",
	"rankbench_filter":           "dataset.filter",

	"rankbench_ranker":              "eval.ranker",
	"rankbench_ks":                  "eval.ks",
	"rankbench_workers":             "eval.workers",
	"rankbench_max_samples":         "eval.max_samples",
	"rankbench_skip_pool_exhausted": "eval.skip_pool_exhausted",
	"rankbench_max_attempts":        "eval.max_attempts",
	"rankbench_retry_delay":         "eval.retry_delay",
	"rankbench_progress":            "eval.progress",

	"llm_base_url":    "llm.base_url",
	"openai_base_url": "llm.base_url",
	"llm_api_key":     "llm.api_key",
	"openai_api_key":  "llm.api_key",
	"llm_model":       "llm.model",
	"llm_temperature": "llm.temperature",
	"llm_max_tokens":  "llm.max_tokens",
	"llm_timeout":     "llm.timeout",
	"llm_rate_limit":  "llm.rate_limit",
	"llm_burst":       "llm.burst",
	"llm_prompt":      "llm.prompt",

	"llm_breaker_max_failures": "llm.circuit_breaker.max_failures",
	"llm_breaker_open_timeout": "llm.circuit_breaker.open_timeout",

	"cache_enabled": "cache.enabled",
	"cache_path":    "cache.path",
	"cache_ttl":     "cache.ttl",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"metrics_enabled": "metrics.enabled",
	"metrics_addr":    "metrics.addr",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf paths.
//
// Examples:
//   - RANKBENCH_SEED -> seed
//   - RANKBENCH_KS -> eval.ks
//   - LLM_API_KEY -> llm.api_key
//   - DUCKDB_PATH -> database.path
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
