// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package ranking orders the candidate list of a split instance.
//
// A Ranker receives the user's input window and the presented candidates
// (sampled negatives plus the held-out target, already shuffled) and returns
// the same items best first. Rankers never see which candidate is the target.
//
// Implementations:
//   - random: seeded shuffle, the reference floor
//   - popularity: global rating counts
//   - markov: first-order item transitions
//   - llm: a chat model prompted with item titles
//
// All rankers are safe for concurrent use.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/tomtom215/rankbench/internal/llm"
	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/sequence"
)

var (
	// ErrMalformedOutput is returned when a ranker's output is not a
	// permutation of the candidates.
	ErrMalformedOutput = errors.New("ranking: output is not a permutation of the candidates")

	// ErrUnknownRanker is returned by New for an unregistered name.
	ErrUnknownRanker = errors.New("ranking: unknown ranker")
)

// Request is one ranking task.
type Request struct {
	UserID string
	Kind   sequence.SplitKind

	// History is the instance's input window, oldest first.
	History []string

	// Candidates in presentation order.
	Candidates []string
}

// Ranker orders candidates.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, req *Request) ([]string, error)
}

// Deps carries what the individual rankers need. Only the fields used by the
// selected ranker must be set.
type Deps struct {
	// Seed drives the random ranker.
	Seed int64

	// Train is the interaction table with held-out items removed. Used by
	// popularity and markov.
	Train []sequence.Interaction

	// Completer, Prompt and Titles configure the llm ranker.
	Completer llm.Completer
	Prompt    string
	Titles    map[string]string
}

// Names lists the registered rankers.
func Names() []string {
	return []string{"random", "popularity", "markov", "llm"}
}

// New constructs the ranker called name.
func New(name string, deps Deps) (Ranker, error) {
	switch name {
	case "random":
		return NewRandom(deps.Seed), nil
	case "popularity":
		p := NewPopularity(deps.Train)
		logTopItems(p)
		return p, nil
	case "markov":
		m, err := NewMarkov(deps.Train, MarkovConfig{})
		if err != nil {
			return nil, err
		}
		logTopItems(m.popularity)
		return m, nil
	case "llm":
		if deps.Completer == nil {
			return nil, errors.New("ranking: llm ranker needs a completer")
		}
		return NewLLM(deps.Completer, deps.Prompt, deps.Titles)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRanker, name)
	}
}

func logTopItems(p *Popularity) {
	log := logging.WithComponent("ranking")
	if e := log.Debug(); e.Enabled() {
		e.Int("items", len(p.counts)).Strs("top_items", p.TopK(10)).Msg("Popularity counts ready")
	}
}

// CheckPermutation returns ErrMalformedOutput unless ranking holds every
// candidate exactly once.
func CheckPermutation(ranking, candidates []string) error {
	if len(ranking) != len(candidates) {
		return fmt.Errorf("%w: got %d items, want %d", ErrMalformedOutput, len(ranking), len(candidates))
	}
	want := make(map[string]int, len(candidates))
	for _, c := range candidates {
		want[c]++
	}
	for _, r := range ranking {
		if want[r] == 0 {
			return fmt.Errorf("%w: unexpected or repeated item %q", ErrMalformedOutput, r)
		}
		want[r]--
	}
	return nil
}

// lessID orders item ids numerically when both are integers, else
// lexicographically.
func lessID(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
