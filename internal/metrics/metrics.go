// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package metrics holds the Prometheus instrumentation for evaluation runs.
//
// Collectors register with the default registry through promauto, so importing
// the package is enough for them to show up on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instance statuses used as the "status" label of InstancesTotal.
const (
	StatusOK        = "ok"
	StatusMalformed = "malformed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

var (
	// Evaluation Metrics
	InstancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankbench_instances_total",
			Help: "Split instances processed, by ranker and outcome",
		},
		[]string{"ranker", "status"}, // ok, malformed, failed, skipped
	)

	RankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rankbench_rank_duration_seconds",
			Help:    "Time spent ranking one instance, retries included",
			Buckets: []float64{.0001, .001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"ranker"},
	)

	RankAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankbench_rank_attempts_total",
			Help: "Ranker invocations, by ranker and result",
		},
		[]string{"ranker", "result"}, // success, retry, error
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankbench_runs_total",
			Help: "Completed evaluation runs",
		},
		[]string{"ranker", "split", "result"},
	)

	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rankbench_run_in_progress",
			Help: "1 while an evaluation run is active",
		},
	)

	SplitInstances = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rankbench_split_instances",
			Help: "Instances produced by the sequence builder for the last run",
		},
		[]string{"split"},
	)

	NDCG = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rankbench_ndcg",
			Help: "Mean NDCG@k of the last run",
		},
		[]string{"ranker", "k"},
	)

	HitRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rankbench_hit_ratio",
			Help: "Hit ratio @k of the last run",
		},
		[]string{"ranker", "k"},
	)

	MRR = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rankbench_mrr",
			Help: "Mean reciprocal rank of the last run",
		},
		[]string{"ranker"},
	)

	// LLM Client Metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankbench_llm_requests_total",
			Help: "Chat completion requests, by model and HTTP status",
		},
		[]string{"model", "status_code"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rankbench_llm_request_duration_seconds",
			Help:    "Latency of chat completion requests",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"model"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankbench_llm_tokens_total",
			Help: "Tokens reported by the chat completion usage block",
		},
		[]string{"model", "kind"}, // prompt, completion
	)

	LLMRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rankbench_llm_rate_limited_total",
			Help: "HTTP 429 responses received from the LLM endpoint",
		},
	)

	// Response Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rankbench_cache_hits_total",
			Help: "LLM response cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rankbench_cache_misses_total",
			Help: "LLM response cache misses",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Dataset and Storage Metrics
	DatasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rankbench_dataset_rows",
			Help: "Rows loaded from the dataset, by file and stage",
		},
		[]string{"file", "stage"}, // loaded, filtered
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// HTTP Metrics (metrics server)
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordInstance records the outcome of one split instance.
func RecordInstance(ranker, status string, duration time.Duration) {
	InstancesTotal.WithLabelValues(ranker, status).Inc()
	if status != StatusSkipped {
		RankDuration.WithLabelValues(ranker).Observe(duration.Seconds())
	}
}

// RecordRankAttempt records one ranker invocation. A failed attempt that will
// be retried is recorded as "retry".
func RecordRankAttempt(ranker string, err error, willRetry bool) {
	result := "success"
	switch {
	case err == nil:
	case willRetry:
		result = "retry"
	default:
		result = "error"
	}
	RankAttempts.WithLabelValues(ranker, result).Inc()
}

// RecordRun records a finished run and publishes its scores.
func RecordRun(ranker, split string, ndcg, hitRatio map[int]float64, mrr float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	RunsTotal.WithLabelValues(ranker, split, result).Inc()
	if err != nil {
		return
	}
	for k, v := range ndcg {
		NDCG.WithLabelValues(ranker, strconv.Itoa(k)).Set(v)
	}
	for k, v := range hitRatio {
		HitRatio.WithLabelValues(ranker, strconv.Itoa(k)).Set(v)
	}
	MRR.WithLabelValues(ranker).Set(mrr)
}

// TrackRun flips RunInProgress.
func TrackRun(active bool) {
	if active {
		RunInProgress.Set(1)
	} else {
		RunInProgress.Set(0)
	}
}

// RecordLLMRequest records one HTTP exchange with the chat completions
// endpoint. statusCode is 0 when no response was received.
func RecordLLMRequest(model string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	LLMRequestsTotal.WithLabelValues(model, code).Inc()
	LLMRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if statusCode == 429 {
		LLMRateLimited.Inc()
	}
}

// RecordLLMUsage adds the token counts of one completion.
func RecordLLMUsage(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordCacheLookup records a response cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records a request to the metrics server
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetAppInfo publishes the build version.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
