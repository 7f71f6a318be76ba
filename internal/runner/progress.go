// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package runner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/rankbench/internal/metrics"
)

// Run states reported by Progress.
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
)

// Progress tracks the current run for the status endpoint. The zero value is
// idle. It is safe for concurrent use.
type Progress struct {
	mu        sync.RWMutex
	state     string
	runID     string
	ranker    string
	split     string
	startedAt time.Time
	elapsed   time.Duration
	total     int

	scored    atomic.Int64
	malformed atomic.Int64
	failed    atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	State          string  `json:"state"`
	RunID          string  `json:"run_id,omitempty"`
	Ranker         string  `json:"ranker,omitempty"`
	Split          string  `json:"split,omitempty"`
	Total          int     `json:"total"`
	Done           int64   `json:"done"`
	Scored         int64   `json:"scored"`
	Malformed      int64   `json:"malformed"`
	Failed         int64   `json:"failed"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// NewProgress returns an idle tracker.
func NewProgress() *Progress {
	return &Progress{state: StateIdle}
}

func (p *Progress) start(runID, ranker, split string, total int) {
	p.mu.Lock()
	p.state = StateRunning
	p.runID, p.ranker, p.split = runID, ranker, split
	p.startedAt = time.Now()
	p.elapsed = 0
	p.total = total
	p.mu.Unlock()

	p.scored.Store(0)
	p.malformed.Store(0)
	p.failed.Store(0)
}

func (p *Progress) record(status string) {
	switch status {
	case metrics.StatusOK:
		p.scored.Add(1)
	case metrics.StatusMalformed:
		p.malformed.Add(1)
	case metrics.StatusFailed:
		p.failed.Add(1)
	}
}

func (p *Progress) finish() {
	p.mu.Lock()
	p.state = StateFinished
	p.elapsed = time.Since(p.startedAt)
	p.mu.Unlock()
}

// Snapshot copies the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	s := ProgressSnapshot{
		State:  p.state,
		RunID:  p.runID,
		Ranker: p.ranker,
		Split:  p.split,
		Total:  p.total,
	}
	switch p.state {
	case StateRunning:
		s.ElapsedSeconds = time.Since(p.startedAt).Seconds()
	case StateFinished:
		s.ElapsedSeconds = p.elapsed.Seconds()
	case "":
		s.State = StateIdle
	}
	p.mu.RUnlock()

	s.Scored = p.scored.Load()
	s.Malformed = p.malformed.Load()
	s.Failed = p.failed.Load()
	s.Done = s.Scored + s.Malformed + s.Failed
	return s
}
