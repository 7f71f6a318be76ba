// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package evaluate

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Accumulator owns the relevance vectors of one evaluation run.
// The zero value is ready to use.
type Accumulator struct {
	instances [][]int
}

// NewAccumulator returns an empty accumulator with room for n instances.
func NewAccumulator(n int) *Accumulator {
	if n < 0 {
		n = 0
	}
	return &Accumulator{instances: make([][]int, 0, n)}
}

// Add appends a relevance vector without validating it. The vector is copied.
func (a *Accumulator) Add(relevance []int) {
	r := make([]int, len(relevance))
	copy(r, relevance)
	a.instances = append(a.instances, r)
}

// AddStrict appends the vector only if it is binary with exactly one relevant
// entry.
func (a *Accumulator) AddStrict(relevance []int) error {
	if err := ValidateRelevance(relevance); err != nil {
		return err
	}
	a.Add(relevance)
	return nil
}

// Merge appends other's instances after a's. other is left unchanged.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.instances = append(a.instances, other.instances...)
}

// Len returns the number of accumulated instances.
func (a *Accumulator) Len() int {
	return len(a.instances)
}

// Reset drops every accumulated instance.
func (a *Accumulator) Reset() {
	a.instances = a.instances[:0]
}

// Compute returns mean NDCG for each cutoff. It does not modify the accumulator
// and may be called repeatedly.
func (a *Accumulator) Compute(ks ...int) (map[int]float64, error) {
	if err := a.check(ks); err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(ks))
	for _, k := range ks {
		out[k] = stat.Mean(a.ndcgScores(k), nil)
	}
	return out, nil
}

// Summary describes the per-instance distribution of one metric.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Count  int     `json:"count"`
}

// Stats returns NDCG mean and sample standard deviation for each cutoff.
// StdDev is 0 when fewer than two instances are present.
func (a *Accumulator) Stats(ks ...int) (map[int]Summary, error) {
	if err := a.check(ks); err != nil {
		return nil, err
	}
	out := make(map[int]Summary, len(ks))
	for _, k := range ks {
		scores := a.ndcgScores(k)
		s := Summary{Count: len(scores)}
		if len(scores) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(scores, nil)
		} else {
			s.Mean = scores[0]
		}
		out[k] = s
	}
	return out, nil
}

// HitRatio returns, per cutoff, the share of instances with a relevant entry
// in the first k positions.
func (a *Accumulator) HitRatio(ks ...int) (map[int]float64, error) {
	if err := a.check(ks); err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(ks))
	for _, k := range ks {
		var hits float64
		for _, r := range a.instances {
			if p := firstRelevant(r); p >= 0 && p < k {
				hits++
			}
		}
		out[k] = hits / float64(len(a.instances))
	}
	return out, nil
}

// MRR returns the mean reciprocal rank of the first relevant entry. Instances
// without one contribute 0.
func (a *Accumulator) MRR() (float64, error) {
	if len(a.instances) == 0 {
		return 0, ErrEmptyAccumulator
	}
	var sum float64
	for _, r := range a.instances {
		if p := firstRelevant(r); p >= 0 {
			sum += 1 / float64(p+1)
		}
	}
	return sum / float64(len(a.instances)), nil
}

func (a *Accumulator) check(ks []int) error {
	if len(a.instances) == 0 {
		return ErrEmptyAccumulator
	}
	if len(ks) == 0 {
		return fmt.Errorf("%w: no cutoffs given", ErrInvalidCutoff)
	}
	for _, k := range ks {
		if k < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidCutoff, k)
		}
	}
	return nil
}

func (a *Accumulator) ndcgScores(k int) []float64 {
	scores := make([]float64, len(a.instances))
	for i, r := range a.instances {
		scores[i] = NDCG(r, k)
	}
	return scores
}

// NDCG returns NDCG@k of a single relevance vector. Entries are used as gains.
func NDCG(relevance []int, k int) float64 {
	if k < 1 || len(relevance) == 0 {
		return 0
	}
	idcg := IdealDCG(relevance, k)
	if idcg == 0 {
		return 0
	}
	return DCG(relevance, k) / idcg
}

// DCG returns the discounted cumulative gain of the first k positions.
func DCG(relevance []int, k int) float64 {
	n := min(k, len(relevance))
	var dcg float64
	for i := 0; i < n; i++ {
		if relevance[i] != 0 {
			dcg += float64(relevance[i]) / math.Log2(float64(i+2))
		}
	}
	return dcg
}

// IdealDCG returns the DCG of the vector sorted in descending order.
func IdealDCG(relevance []int, k int) float64 {
	ideal := make([]int, len(relevance))
	copy(ideal, relevance)
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))
	return DCG(ideal, k)
}

func firstRelevant(relevance []int) int {
	for i, v := range relevance {
		if v > 0 {
			return i
		}
	}
	return -1
}
