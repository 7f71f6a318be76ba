// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package api serves the observability endpoints of a running evaluation.
//
//	GET /healthz        liveness and store connectivity
//	GET /api/v1/run     progress of the current run
//	GET /metrics        Prometheus exposition
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/rankbench/internal/middleware"
	"github.com/tomtom215/rankbench/internal/runner"
)

// Pinger reports whether a dependency is reachable. *database.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the state behind the endpoints.
type Handler struct {
	progress  *runner.Progress
	db        Pinger
	version   string
	startTime time.Time
}

// NewHandler creates a handler. db may be nil when persistence is disabled.
func NewHandler(progress *runner.Progress, db Pinger, version string) *Handler {
	if progress == nil {
		progress = runner.NewProgress()
	}
	return &Handler{
		progress:  progress,
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// Router configures the routes using Chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/run", h.RunStatus)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
