// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package ranking

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/tomtom215/rankbench/internal/sequence"
)

// Random shuffles the candidates. Each request gets its own generator seeded
// from the ranker seed and the user id, so results do not depend on the
// order in which workers call Rank.
type Random struct {
	seed int64
}

// NewRandom creates a Random ranker.
func NewRandom(seed int64) *Random {
	return &Random{seed: seed}
}

// Name implements Ranker.
func (r *Random) Name() string { return "random" }

// Rank implements Ranker.
func (r *Random) Rank(ctx context.Context, req *Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(req.UserID))
	_, _ = h.Write([]byte{byte(req.Kind)})
	rng := rand.New(rand.NewSource(r.seed ^ int64(h.Sum64()))) //nolint:gosec // reproducible shuffle

	out := append([]string(nil), req.Candidates...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// Popularity ranks candidates by how often they were rated in the training
// table. Ties are broken by item id.
type Popularity struct {
	counts map[string]int
}

// NewPopularity counts item occurrences in train.
func NewPopularity(train []sequence.Interaction) *Popularity {
	counts := make(map[string]int)
	for i := range train {
		counts[train[i].ItemID]++
	}
	return &Popularity{counts: counts}
}

// Name implements Ranker.
func (p *Popularity) Name() string { return "popularity" }

// Count returns the training count of item.
func (p *Popularity) Count(item string) int { return p.counts[item] }

// Rank implements Ranker.
func (p *Popularity) Rank(ctx context.Context, req *Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := append([]string(nil), req.Candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := p.counts[out[i]], p.counts[out[j]]
		if ci != cj {
			return ci > cj
		}
		return lessID(out[i], out[j])
	})
	return out, nil
}

// TopK returns the k most popular items.
func (p *Popularity) TopK(k int) []string {
	if k <= 0 {
		return nil
	}
	items := make([]string, 0, len(p.counts))
	for id := range p.counts {
		items = append(items, id)
	}
	sort.Slice(items, func(i, j int) bool {
		ci, cj := p.counts[items[i]], p.counts[items[j]]
		if ci != cj {
			return ci > cj
		}
		return lessID(items[i], items[j])
	})
	if k > len(items) {
		k = len(items)
	}
	return items[:k]
}
