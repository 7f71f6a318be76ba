// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/rankbench/internal/cache"
	"github.com/tomtom215/rankbench/internal/logging"
)

// Limited throttles a Completer with a token bucket shared by all callers.
type Limited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewLimited allows rps requests per second with the given burst. A
// non-positive rps returns next unchanged.
func NewLimited(next Completer, rps float64, burst int) Completer {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Complete waits for a token, then delegates.
func (l *Limited) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm: rate limiter: %w", err)
	}
	return l.next.Complete(ctx, messages)
}

// Cached answers repeated conversations from a ResponseCache. Only successful
// completions are stored. Cache failures are logged and the request goes
// through.
type Cached struct {
	next        Completer
	store       *cache.ResponseCache
	model       string
	temperature float64
}

// NewCached wraps next. model and temperature are part of every key.
func NewCached(next Completer, store *cache.ResponseCache, model string, temperature float64) *Cached {
	return &Cached{next: next, store: store, model: model, temperature: temperature}
}

type cacheKey struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

// Complete implements Completer.
func (c *Cached) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	log := logging.Ctx(ctx)

	key, err := cache.Key("chat", cacheKey{Model: c.model, Temperature: c.temperature, Messages: messages})
	if err != nil {
		return nil, err
	}

	if data, ok, err := c.store.Get(key); err != nil {
		log.Warn().Err(err).Msg("response cache read failed")
	} else if ok {
		var hit Completion
		if err := json.Unmarshal(data, &hit); err == nil {
			hit.Cached = true
			return &hit, nil
		}
		log.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		_ = c.store.Delete(key)
	}

	out, err := c.next.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := c.store.Set(key, data); err != nil {
			log.Warn().Err(err).Msg("response cache write failed")
		}
	}
	return out, nil
}
