// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// MarkovConfig contains configuration for the Markov ranker.
type MarkovConfig struct {
	// SmoothingAlpha is the Laplace smoothing parameter added to every
	// transition count. Default: 0.1.
	SmoothingAlpha float64

	// SessionWindowSeconds drops transitions between ratings further apart
	// than this. 0 keeps every transition.
	SessionWindowSeconds int64
}

// Markov is a first-order Markov chain over item transitions. It answers
// "given that the user just rated X, which candidate comes next?":
//
//	P(c | x) = (count(x -> c) + alpha) / (count(x -> any) + alpha * V)
//
// where V is the number of distinct items. Candidates with equal probability,
// including every candidate when x was never seen, fall back to popularity
// and then item id.
type Markov struct {
	config MarkovConfig

	// transitions[from][to] = count
	transitions map[string]map[string]int
	outCounts   map[string]int
	vocabulary  int

	popularity *Popularity
}

// NewMarkov learns transitions from the time-ordered histories in train.
func NewMarkov(train []sequence.Interaction, cfg MarkovConfig) (*Markov, error) {
	if cfg.SmoothingAlpha <= 0 {
		cfg.SmoothingAlpha = 0.1
	}

	m := &Markov{
		config:      cfg,
		transitions: make(map[string]map[string]int),
		outCounts:   make(map[string]int),
		popularity:  NewPopularity(train),
	}
	if len(train) == 0 {
		return m, nil
	}

	idx, err := sequence.NewIndex(train)
	if err != nil {
		return nil, fmt.Errorf("ranking: markov: %w", err)
	}
	m.vocabulary = idx.NumItems()

	for _, uid := range idx.Users() {
		rows := idx.Rows(uid)
		for i := 1; i < len(rows); i++ {
			prev, cur := rows[i-1], rows[i]
			if cfg.SessionWindowSeconds > 0 && cur.Timestamp-prev.Timestamp > cfg.SessionWindowSeconds {
				continue
			}
			if m.transitions[prev.ItemID] == nil {
				m.transitions[prev.ItemID] = make(map[string]int)
			}
			m.transitions[prev.ItemID][cur.ItemID]++
			m.outCounts[prev.ItemID]++
		}
	}
	return m, nil
}

// Name implements Ranker.
func (m *Markov) Name() string { return "markov" }

// Probability returns P(to | from).
func (m *Markov) Probability(from, to string) float64 {
	v := float64(m.vocabulary)
	if v == 0 {
		return 0
	}
	alpha := m.config.SmoothingAlpha
	return (float64(m.transitions[from][to]) + alpha) / (float64(m.outCounts[from]) + alpha*v)
}

// Rank implements Ranker.
func (m *Markov) Rank(ctx context.Context, req *Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last string
	if n := len(req.History); n > 0 {
		last = req.History[n-1]
	}

	// one shared denominator, so transition counts order like P(c | last)
	out := append([]string(nil), req.Candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := m.transitions[last][out[i]], m.transitions[last][out[j]]
		if ci != cj {
			return ci > cj
		}
		pi, pj := m.popularity.Count(out[i]), m.popularity.Count(out[j])
		if pi != pj {
			return pi > pj
		}
		return lessID(out[i], out[j])
	})

	if e := logging.Ctx(ctx).Debug(); e.Enabled() {
		scores := make([]float64, len(out))
		for i, c := range out {
			scores[i] = m.Probability(last, c)
		}
		e.Str("last", last).Strs("ranking", out).Floats64("p_next", scores).Msg("Markov scores")
	}
	return out, nil
}
