// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package evaluate

import "errors"

var (
	// ErrEmptyAccumulator is returned when a metric is requested before any
	// instance was added.
	ErrEmptyAccumulator = errors.New("evaluate: no instances accumulated")

	// ErrInvalidCutoff is returned for a cutoff below 1 or an empty cutoff list.
	ErrInvalidCutoff = errors.New("evaluate: invalid cutoff")

	// ErrMalformedRelevance is returned by AddStrict for a vector that does not
	// contain exactly one relevant entry or contains values other than 0 and 1.
	ErrMalformedRelevance = errors.New("evaluate: malformed relevance vector")
)
