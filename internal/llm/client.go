// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/metrics"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// MaxRetries is the number of extra attempts after an HTTP 429.
	MaxRetries int

	// RetryBaseDelay is the first 429 backoff; it doubles per attempt unless
	// the server sends Retry-After.
	RetryBaseDelay time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	client         *http.Client
	endpoint       string
	apiKey         string
	model          string
	temperature    float64
	maxTokens      int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates a Client. Zero values get defaults: 60s timeout, 3 retries,
// 1s base delay.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		client:         httpClient,
		endpoint:       strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		maxRetries:     maxRetries,
		retryBaseDelay: baseDelay,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Temperature returns the configured sampling temperature.
func (c *Client) Temperature() float64 { return c.temperature }

// Complete sends messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	resp, err := c.doRequestWithRateLimit(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	model := out.Model
	if model == "" {
		model = c.model
	}
	metrics.RecordLLMUsage(c.model, out.Usage.PromptTokens, out.Usage.CompletionTokens)

	return &Completion{
		Content:      out.Choices[0].Message.Content,
		Model:        model,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        out.Usage,
	}, nil
}

// doRequestWithRateLimit posts body and retries on HTTP 429 with exponential
// backoff, honoring Retry-After. Any other response is returned to the caller.
func (c *Client) doRequestWithRateLimit(ctx context.Context, body []byte) (*http.Response, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("llm: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			metrics.RecordLLMRequest(c.model, 0, time.Since(start))
			return nil, fmt.Errorf("llm: HTTP request failed: %w", err)
		}
		metrics.RecordLLMRequest(c.model, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			break
		}

		// 1s, 2s, 4s, ...
		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		logging.Ctx(ctx).Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("LLM endpoint rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w after %d retries (HTTP 429)", ErrRateLimited, c.maxRetries)
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body errorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		apiErr.Type = body.Error.Type
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
