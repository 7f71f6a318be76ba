// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package evaluate scores ranked predictions against held-out targets.
//
// A ranking instance is a relevance vector: one entry per position of a
// predicted ordering, 1 where the item is the held-out target and 0
// elsewhere. An Accumulator collects vectors for one run and reports
// averaged metrics at any number of cutoffs:
//
//	DCG@k  = sum over i < min(k, len(r)) of r[i] / log2(i+2)
//	IDCG@k = DCG@k of r sorted in descending order
//	NDCG@k = DCG@k / IDCG@k, or 0 when IDCG@k is 0
//
// With a single relevant entry at position p (0-based), NDCG@k is
// 1/log2(p+2) when k > p and 0 otherwise.
//
// HitRatio@k and MRR are computed from the same vectors.
//
// Accumulators are not safe for concurrent use. Give each worker its own and
// combine them with Merge once the workers are done.
package evaluate
