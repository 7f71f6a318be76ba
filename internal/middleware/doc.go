// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

/*
Package middleware provides HTTP middleware for the observability server.

Both middlewares use chi's func(http.Handler) http.Handler shape:

  - RequestID: X-Request-ID propagation and a request-scoped logger
  - PrometheusMetrics: request count and latency per route pattern

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
