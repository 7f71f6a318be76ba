// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const okBody = `{
  "id": "chatcmpl-1",
  "model": "test-model-0613",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "3, 1, 2"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 42, "completion_tokens": 5, "total_tokens": 47}
}`

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:        url + "/v1/",
		APIKey:         "sk-test",
		Model:          "test-model",
		MaxTokens:      64,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	})
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body: %v", err)
		}
		if body["model"] != "test-model" {
			t.Errorf("model = %v", body["model"])
		}
		if _, ok := body["temperature"]; !ok {
			t.Error("temperature 0 must be sent explicitly")
		}
		if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
			t.Errorf("messages = %v", body["messages"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	out, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "rank"},
		{Role: RoleUser, Content: "1. A\n2. B"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Content != "3, 1, 2" || out.Model != "test-model-0613" || out.FinishReason != "stop" {
		t.Errorf("Complete() = %+v", out)
	}
	if out.Usage.TotalTokens != 47 {
		t.Errorf("Usage = %+v", out.Usage)
	}
	if out.Cached {
		t.Error("fresh completion marked as cached")
	}
}

func TestClient_RateLimitRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out.Content != "3, 1, 2" {
		t.Errorf("Content = %q", out.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestClient_RateLimitExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Complete() error = %v, want ErrRateLimited", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server calls = %d, want 3 (1 + 2 retries)", calls.Load())
	}
}

func TestClient_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{
			name:   "api error with json body",
			status: http.StatusUnauthorized,
			body:   `{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`,
			check: func(err error) bool {
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.StatusCode == 401 && apiErr.Type == "invalid_request_error"
			},
			wantMsg: "Incorrect API key",
		},
		{
			name:   "api error with text body",
			status: http.StatusBadGateway,
			body:   "upstream unavailable\n",
			check: func(err error) bool {
				var apiErr *APIError
				return errors.As(err, &apiErr) && apiErr.StatusCode == 502
			},
			wantMsg: "upstream unavailable",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    `{"choices": []}`,
			check:   func(err error) bool { return errors.Is(err, ErrEmptyCompletion) },
			wantMsg: "no choices",
		},
		{
			name:    "invalid json",
			status:  http.StatusOK,
			body:    `{"choices": [`,
			check:   func(err error) bool { return err != nil },
			wantMsg: "decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
			if err == nil || !tt.check(err) {
				t.Fatalf("Complete() error = %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestClient(srv.URL).Complete(ctx, []Message{{Role: RoleUser, Content: "x"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Complete() error = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff did not stop at context deadline")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(ClientConfig{BaseURL: "http://localhost:11434/v1", Model: "llama3", Temperature: 0.2})
	if c.endpoint != "http://localhost:11434/v1/chat/completions" {
		t.Errorf("endpoint = %q", c.endpoint)
	}
	if c.maxRetries != 3 || c.retryBaseDelay != time.Second {
		t.Errorf("retry defaults = %d/%v", c.maxRetries, c.retryBaseDelay)
	}
	if c.client.Timeout != 60*time.Second {
		t.Errorf("timeout = %v", c.client.Timeout)
	}
	if c.Model() != "llama3" || c.Temperature() != 0.2 {
		t.Errorf("Model/Temperature = %q/%v", c.Model(), c.Temperature())
	}
}
