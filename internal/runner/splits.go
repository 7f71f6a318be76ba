// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package runner

import (
	"errors"
	"math/rand"

	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// Skip records a user that produced no instance.
type Skip struct {
	UserID string
	Reason error
}

// Splits is the outcome of one split pass.
type Splits struct {
	Kind      sequence.SplitKind
	Instances []sequence.SplitInstance
	Skipped   []Skip
}

// SplitOptions controls BuildSplits.
type SplitOptions struct {
	Kind sequence.SplitKind
	Seed int64
	sequence.Options

	// SkipPoolExhausted turns a too-small candidate pool into a skip instead
	// of an error.
	SkipPoolExhausted bool
}

// BuildSplits runs the sequence builder over every user of idx on the calling
// goroutine. Users whose history is too short for the split are always
// skipped; pool exhaustion fails the pass unless SkipPoolExhausted is set.
func BuildSplits(idx *sequence.Index, opts SplitOptions) (*Splits, error) {
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // reproducible sampling, not security
	b, err := sequence.NewBuilder(idx, opts.Options, rng)
	if err != nil {
		return nil, err
	}

	out := &Splits{
		Kind:      opts.Kind,
		Instances: make([]sequence.SplitInstance, 0, idx.NumUsers()),
	}
	for _, uid := range idx.Users() {
		inst, err := b.Instance(uid, opts.Kind)
		switch {
		case err == nil:
			out.Instances = append(out.Instances, inst)
		case errors.Is(err, sequence.ErrHistoryTooShort),
			opts.SkipPoolExhausted && errors.Is(err, sequence.ErrPoolExhausted):
			out.Skipped = append(out.Skipped, Skip{UserID: uid, Reason: err})
			logging.Warn().Err(err).Str("uid", uid).Msg("Skipping user")
		default:
			return nil, err
		}
	}

	metrics.SplitInstances.WithLabelValues(opts.Kind.String()).Set(float64(len(out.Instances)))
	return out, nil
}

// presentationSalt separates the presentation stream from the sampling stream
// of the same seed.
const presentationSalt int64 = 0x5eed9e3779b97f4a

// PresentationSeed derives the seed of the presentation shuffle from the run
// seed.
func PresentationSeed(seed int64) int64 {
	return seed ^ presentationSalt
}

// Present returns, per instance, the candidates followed by the target in a
// shuffled order. One random source seeded with PresentationSeed(seed) is
// advanced across instances in order. Instances without a target present only
// the candidates.
func Present(instances []sequence.SplitInstance, seed int64) [][]string {
	rng := rand.New(rand.NewSource(PresentationSeed(seed))) //nolint:gosec // reproducible presentation order
	out := make([][]string, len(instances))
	for i := range instances {
		inst := &instances[i]
		list := make([]string, 0, len(inst.Candidates)+1)
		list = append(list, inst.Candidates...)
		if inst.HasTarget() {
			list = append(list, inst.Target)
		}
		rng.Shuffle(len(list), func(a, b int) { list[a], list[b] = list[b], list[a] })
		out[i] = list
	}
	return out
}
