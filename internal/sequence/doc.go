// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package sequence turns a flat ratings log into per-user evaluation instances.
//
// # Overview
//
// Each user's interactions are ordered by timestamp to form a history. A split
// kind selects a window of that history and an optional held-out target:
//
//   - train:      seq = history[-W:-2], no target
//   - validation: seq = history[-W:-2], target = history[-2]
//   - test:       seq = history[-W:-1], target = history[-1]
//
// W is the window size (default 10). Every instance also carries a fixed-size
// set of negative candidates (default 10) sampled uniformly without replacement
// from the items the user never interacted with.
//
// # Reproducibility
//
// Candidate sampling draws from one *rand.Rand that advances across the whole
// pass; it is never reseeded per user. Output therefore depends on the order in
// which users are visited. Users are visited in first-seen order of the input
// table, and the candidate pool keeps first-seen item order, so the same table,
// split kind, options and seed always yield identical instances.
//
// # Usage
//
//	idx, err := sequence.NewIndex(interactions)
//	if err != nil {
//	    return err
//	}
//	b, err := sequence.NewBuilder(idx, sequence.DefaultOptions(), rand.New(rand.NewSource(42)))
//	if err != nil {
//	    return err
//	}
//	for inst, err := range b.All(sequence.SplitTest) {
//	    if errors.Is(err, sequence.ErrPoolExhausted) {
//	        continue // skip this user
//	    }
//	    ...
//	}
//
// # Thread Safety
//
// Index is read-only after construction and safe for concurrent readers.
// Builder owns a random source and must be used from a single goroutine.
package sequence
