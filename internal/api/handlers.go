// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rankbench/internal/logging"
)

// Response is the envelope of every JSON response.
type Response struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the payload of /healthz.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Health reports liveness. It answers 503 when a configured store is
// unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:        "healthy",
		Version:       h.version,
		Database:      "disabled",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	code := http.StatusOK
	resp := &Response{Status: "success"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Health check: database unreachable")
			status.Status, status.Database = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
			resp.Status, resp.Error = "error", "database unreachable"
		} else {
			status.Database = "connected"
		}
	}

	resp.Data, resp.Timestamp = status, time.Now()
	respondJSON(w, r, code, resp)
}

// RunStatus returns the progress of the current or last run.
func (h *Handler) RunStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &Response{
		Status:    "success",
		Data:      h.progress.Snapshot(),
		Timestamp: time.Now(),
	})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}
