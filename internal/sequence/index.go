// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package sequence

import (
	"fmt"
	"sort"
)

// Index groups a ratings table by user. It is immutable after NewIndex.
type Index struct {
	// users in first-seen order
	users []string

	// rows per user, sorted by timestamp (stable)
	rows map[string][]Interaction

	// histories per user, item ids in rows order
	histories map[string][]string

	// universe holds every distinct item id in first-seen order
	universe []string
}

// NewIndex groups interactions by user and orders each group by timestamp.
// Rows with equal timestamps keep their input order.
func NewIndex(interactions []Interaction) (*Index, error) {
	if len(interactions) == 0 {
		return nil, ErrNoInteractions
	}

	idx := &Index{
		rows:      make(map[string][]Interaction),
		histories: make(map[string][]string),
	}

	seenItems := make(map[string]struct{})
	for i := range interactions {
		inter := &interactions[i]
		if _, ok := idx.rows[inter.UserID]; !ok {
			idx.users = append(idx.users, inter.UserID)
		}
		idx.rows[inter.UserID] = append(idx.rows[inter.UserID], *inter)

		if _, ok := seenItems[inter.ItemID]; !ok {
			seenItems[inter.ItemID] = struct{}{}
			idx.universe = append(idx.universe, inter.ItemID)
		}
	}

	for userID, rows := range idx.rows {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp < rows[j].Timestamp
		})
		history := make([]string, len(rows))
		for i := range rows {
			history[i] = rows[i].ItemID
		}
		idx.histories[userID] = history
	}

	return idx, nil
}

// Users returns user ids in first-seen order.
func (x *Index) Users() []string {
	out := make([]string, len(x.users))
	copy(out, x.users)
	return out
}

// Universe returns all distinct item ids in first-seen order.
func (x *Index) Universe() []string {
	out := make([]string, len(x.universe))
	copy(out, x.universe)
	return out
}

// NumUsers returns the number of distinct users.
func (x *Index) NumUsers() int { return len(x.users) }

// NumItems returns the number of distinct items.
func (x *Index) NumItems() int { return len(x.universe) }

// History returns the user's item ids ordered by timestamp.
func (x *Index) History(userID string) ([]string, error) {
	h, ok := x.histories[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	out := make([]string, len(h))
	copy(out, h)
	return out, nil
}

// Rows returns a copy of the user's interactions ordered by timestamp, or nil
// for an unknown user.
func (x *Index) Rows(userID string) []Interaction {
	return append([]Interaction(nil), x.rows[userID]...)
}

// TrainingInteractions returns every row that is visible to a model evaluated
// on the given split: each user's trailing held-out items are removed (the last
// item for test, the last two for validation and train). Rows are grouped by
// user in first-seen order and sorted by timestamp within a user.
func (x *Index) TrainingInteractions(kind SplitKind) []Interaction {
	var out []Interaction
	drop := kind.heldOut()
	for _, userID := range x.users {
		rows := x.rows[userID]
		keep := len(rows) - drop
		if keep <= 0 {
			continue
		}
		out = append(out, rows[:keep]...)
	}
	return out
}

// candidatePool returns universe items the user never interacted with, in
// universe order.
func (x *Index) candidatePool(userID string) []string {
	history := x.histories[userID]
	seen := make(map[string]struct{}, len(history))
	for _, item := range history {
		seen[item] = struct{}{}
	}

	pool := make([]string, 0, len(x.universe)-len(seen))
	for _, item := range x.universe {
		if _, ok := seen[item]; !ok {
			pool = append(pool, item)
		}
	}
	return pool
}
