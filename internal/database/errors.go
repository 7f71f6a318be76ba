// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package database

import (
	"errors"
	"io"
)

var (
	// ErrDisabled is returned by New when no database path is configured.
	ErrDisabled = errors.New("database: persistence disabled")

	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("database: not found")
)

// closeQuietly closes a resource, ignoring errors.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
