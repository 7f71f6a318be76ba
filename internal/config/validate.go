// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"text/template"

	"github.com/tomtom215/rankbench/internal/validation"
)

// ErrInvalidConfig wraps every cross-field validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// PromptFuncs are the template functions available to llm.prompt. The ranking
// package renders with the same set.
var PromptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// Validate runs struct tag rules, then cross-field checks.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateMetrics()
}

// validateLLM only applies when the llm ranker is selected.
func (c *Config) validateLLM() error {
	if c.Eval.Ranker != "llm" {
		return nil
	}

	u, err := url.Parse(c.LLM.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: llm.base_url: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: llm.base_url scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}

	// Local OpenAI-compatible servers usually run without auth.
	if c.LLM.APIKey == "" && !isLoopback(u.Hostname()) {
		return fmt.Errorf("%w: llm.api_key (LLM_API_KEY) is required for %s", ErrInvalidConfig, u.Host)
	}

	if _, err := template.New("prompt").Funcs(PromptFuncs).Parse(c.LLM.Prompt); err != nil {
		return fmt.Errorf("%w: llm.prompt: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("%w: cache.path is required when cache.enabled=true", ErrInvalidConfig)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if !c.Metrics.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		return fmt.Errorf("%w: metrics.addr %q: %w", ErrInvalidConfig, c.Metrics.Addr, err)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
