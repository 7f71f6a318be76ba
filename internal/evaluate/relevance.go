// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package evaluate

import "fmt"

// RelevanceVector marks the target's position in a ranking with 1.
func RelevanceVector(ranking []string, target string) []int {
	r := make([]int, len(ranking))
	for i, item := range ranking {
		if item == target {
			r[i] = 1
		}
	}
	return r
}

// ValidateRelevance checks that a vector is binary with exactly one 1.
func ValidateRelevance(relevance []int) error {
	ones := 0
	for i, v := range relevance {
		switch v {
		case 0:
		case 1:
			ones++
		default:
			return fmt.Errorf("%w: value %d at position %d", ErrMalformedRelevance, v, i)
		}
	}
	if ones != 1 {
		return fmt.Errorf("%w: %d relevant entries, want 1", ErrMalformedRelevance, ones)
	}
	return nil
}
