// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package llm is a small client for OpenAI-compatible chat completion
// endpoints.
//
// New assembles the request path used by the llm ranker:
//
//	Cached -> Limited -> Breaker -> Client
//
// Cache hits never consume rate limiter tokens and never reach the breaker.
// Client retries HTTP 429 itself; every other failure is returned so the
// caller's retry policy and the breaker see it.
package llm

import (
	"github.com/tomtom215/rankbench/internal/cache"
	"github.com/tomtom215/rankbench/internal/config"
)

// New builds the Completer described by cfg. store may be nil to disable
// response caching.
func New(cfg config.LLMConfig, store *cache.ResponseCache) Completer {
	client := NewClient(ClientConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})

	var c Completer = NewBreaker(client, BreakerConfig{
		Name:        "llm-api",
		MaxFailures: cfg.CircuitBreaker.MaxFailures,
		OpenTimeout: cfg.CircuitBreaker.OpenTimeout,
	})
	c = NewLimited(c, cfg.RateLimit, cfg.Burst)
	if store != nil {
		c = NewCached(c, store, cfg.Model, cfg.Temperature)
	}
	return c
}
