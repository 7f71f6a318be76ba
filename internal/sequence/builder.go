// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package sequence

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"
)

// Builder produces split instances from an Index. It owns the random source
// used for candidate sampling and is not safe for concurrent use.
type Builder struct {
	index *Index
	opts  Options
	rng   *rand.Rand
}

// NewBuilder creates a builder. The random source is advanced by every sampled
// instance and is never reseeded.
func NewBuilder(index *Index, opts Options, rng *rand.Rand) (*Builder, error) {
	if index == nil {
		return nil, ErrNoInteractions
	}
	if rng == nil {
		return nil, errors.New("sequence: nil random source")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Builder{index: index, opts: opts, rng: rng}, nil
}

// Options returns the builder's options.
func (b *Builder) Options() Options {
	return b.opts
}

// Instance builds the instance for a single user. The window is sliced first
// so a too-short history fails without consuming randomness.
func (b *Builder) Instance(userID string, kind SplitKind) (SplitInstance, error) {
	if kind < SplitTrain || kind > SplitTest {
		return SplitInstance{}, fmt.Errorf("%w: %d", ErrInvalidSplitKind, int(kind))
	}

	history, ok := b.index.histories[userID]
	if !ok {
		return SplitInstance{}, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	seq, target, err := window(history, kind, b.opts.WindowSize)
	if err != nil {
		return SplitInstance{}, fmt.Errorf("user %s, %s split: %w", userID, kind, err)
	}

	pool := b.index.candidatePool(userID)
	if len(pool) < b.opts.SampleSize {
		return SplitInstance{}, &PoolExhaustedError{
			UserID:    userID,
			Available: len(pool),
			Requested: b.opts.SampleSize,
		}
	}

	return SplitInstance{
		UserID:     userID,
		Kind:       kind,
		Seq:        seq,
		Target:     target,
		Candidates: sampleWithoutReplacement(b.rng, pool, b.opts.SampleSize),
	}, nil
}

// All yields one instance per user in first-seen user order. A user that
// cannot produce an instance yields a zero SplitInstance and the error, and
// iteration continues with the next user unless the consumer stops.
func (b *Builder) All(kind SplitKind) iter.Seq2[SplitInstance, error] {
	return func(yield func(SplitInstance, error) bool) {
		for _, userID := range b.index.users {
			inst, err := b.Instance(userID, kind)
			if !yield(inst, err) {
				return
			}
		}
	}
}

// Build is the strict form of All: it materializes every instance and fails
// on the first user that cannot produce one.
func (b *Builder) Build(kind SplitKind) ([]SplitInstance, error) {
	out := make([]SplitInstance, 0, b.index.NumUsers())
	for inst, err := range b.All(kind) {
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// Build groups interactions, seeds a fresh random source and builds every
// instance of the given kind.
func Build(interactions []Interaction, kind SplitKind, seed int64, opts Options) ([]SplitInstance, error) {
	idx, err := NewIndex(interactions)
	if err != nil {
		return nil, err
	}
	b, err := NewBuilder(idx, opts, rand.New(rand.NewSource(seed))) //nolint:gosec // reproducible sampling, not security
	if err != nil {
		return nil, err
	}
	return b.Build(kind)
}

// window slices a history per split kind. Bounds follow slice semantics
// counted from the end and clamped at zero; an inverted range is empty.
func window(history []string, kind SplitKind, size int) (seq []string, target string, err error) {
	n := len(history)
	switch kind {
	case SplitTrain:
		return tail(history, size, 2), "", nil
	case SplitValidation:
		if n < 2 {
			return nil, "", fmt.Errorf("%w: validation needs 2 items, have %d", ErrHistoryTooShort, n)
		}
		return tail(history, size, 2), history[n-2], nil
	case SplitTest:
		if n < 1 {
			return nil, "", fmt.Errorf("%w: test needs 1 item, have %d", ErrHistoryTooShort, n)
		}
		return tail(history, size, 1), history[n-1], nil
	default:
		return nil, "", fmt.Errorf("%w: %d", ErrInvalidSplitKind, int(kind))
	}
}

// tail returns a copy of history[-from:-to].
func tail(history []string, from, to int) []string {
	n := len(history)
	start := clamp(n-from, 0, n)
	end := clamp(n-to, 0, n)
	if start >= end {
		return []string{}
	}
	out := make([]string, end-start)
	copy(out, history[start:end])
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sampleWithoutReplacement draws k items with a partial Fisher-Yates shuffle.
// pool is reordered in place; the caller must own it.
func sampleWithoutReplacement(rng *rand.Rand, pool []string, k int) []string {
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	out := make([]string, k)
	copy(out, pool[:k])
	return out
}
