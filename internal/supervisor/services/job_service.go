// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/thejerf/suture/v4"
)

// JobService runs fn exactly once under a supervisor. It is never restarted,
// whatever fn returns; the result is handed to Wait.
type JobService struct {
	name string
	fn   func(context.Context) error

	once sync.Once
	done chan struct{}
	err  error
}

// NewJobService wraps fn.
func NewJobService(name string, fn func(context.Context) error) *JobService {
	return &JobService{
		name: name,
		fn:   fn,
		done: make(chan struct{}),
	}
}

// Serve implements suture.Service.
func (j *JobService) Serve(ctx context.Context) error {
	j.once.Do(func() {
		defer close(j.done)
		defer func() {
			if r := recover(); r != nil {
				j.err = fmt.Errorf("%s panicked: %v", j.name, r)
			}
		}()
		j.err = j.fn(ctx)
	})
	return suture.ErrDoNotRestart
}

// Done is closed when the job has finished.
func (j *JobService) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its error, or until ctx ends.
func (j *JobService) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// String implements fmt.Stringer for logging.
func (j *JobService) String() string {
	return j.name
}
