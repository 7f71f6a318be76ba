// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package sequence

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInteractions is returned when an index is built from an empty table.
	ErrNoInteractions = errors.New("sequence: no interactions")

	// ErrPoolExhausted is returned when fewer items are eligible as negative
	// candidates than the configured sample size. Use errors.As with
	// *PoolExhaustedError for details.
	ErrPoolExhausted = errors.New("sequence: candidate pool exhausted")

	// ErrHistoryTooShort is returned when a split needs a target the history
	// cannot provide.
	ErrHistoryTooShort = errors.New("sequence: history too short")

	// ErrUnknownUser is returned for a user id that is not in the index.
	ErrUnknownUser = errors.New("sequence: unknown user")

	// ErrInvalidSplitKind is returned for an unrecognized split kind.
	ErrInvalidSplitKind = errors.New("sequence: invalid split kind")

	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("sequence: invalid options")
)

// PoolExhaustedError describes a user whose candidate pool is smaller than the
// requested sample size.
type PoolExhaustedError struct {
	UserID    string
	Available int
	Requested int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("sequence: candidate pool exhausted for user %s: %d eligible items, %d requested",
		e.UserID, e.Available, e.Requested)
}

// Unwrap lets errors.Is match ErrPoolExhausted.
func (e *PoolExhaustedError) Unwrap() error {
	return ErrPoolExhausted
}
