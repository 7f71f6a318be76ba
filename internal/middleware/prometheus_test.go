// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/rankbench/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/probe/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/probe-ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok")) // implicit 200
	})

	tests := []struct {
		name     string
		path     string
		endpoint string
		status   string
		want     int
	}{
		{"pattern label", "/probe/1", "/probe/{id}", "418", 2},
		{"implicit ok", "/probe-ok", "/probe-ok", "200", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, tt.endpoint, tt.status))
			for range tt.want {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			}
			after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, tt.endpoint, tt.status))
			if after-before != float64(tt.want) {
				t.Errorf("requests recorded = %v, want %d", after-before, tt.want)
			}
		})
	}
}

func TestPrometheusMetrics_WithoutRouter(t *testing.T) {
	t.Parallel()

	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "unmatched", "404"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anything", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "unmatched", "404"))
	if after-before != 1 {
		t.Errorf("unmatched requests recorded = %v, want 1", after-before)
	}
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError) // ignored by the recorder too

	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want first written code 201", rw.statusCode)
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() did not return the wrapped writer")
	}
}
