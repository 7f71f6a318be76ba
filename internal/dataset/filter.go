// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// ErrInvalidFilter is returned when a filter expression does not compile to a
// boolean.
var ErrInvalidFilter = errors.New("dataset: invalid filter")

// Filter is a compiled CEL predicate over one interaction.
//
// Variables: rating, timestamp (int), user_id, item_id (string) and, from
// u.user, age (int), gender, occupation (string). Users missing from u.user
// evaluate with zero values.
//
// Examples:
//
//	rating >= 4
//	timestamp < 890000000 && gender == "F"
type Filter struct {
	expr string
	prg  cel.Program
}

// NewFilter compiles expr. An empty or blank expression returns (nil, nil);
// a nil *Filter keeps every row.
func NewFilter(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("rating", cel.IntType),
		cel.Variable("timestamp", cel.IntType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("item_id", cel.StringType),
		cel.Variable("age", cel.IntType),
		cel.Variable("gender", cel.StringType),
		cel.Variable("occupation", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("dataset: cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFilter, expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: %q evaluates to %s, want bool", ErrInvalidFilter, expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFilter, expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the predicate for one interaction.
func (f *Filter) Match(in *sequence.Interaction, user User) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, _, err := f.prg.Eval(map[string]any{
		"rating":     int64(in.Rating),
		"timestamp":  in.Timestamp,
		"user_id":    in.UserID,
		"item_id":    in.ItemID,
		"age":        int64(user.Age),
		"gender":     user.Gender,
		"occupation": user.Occupation,
	})
	if err != nil {
		return false, fmt.Errorf("dataset: filter %q on user %s item %s: %w", f.expr, in.UserID, in.ItemID, err)
	}
	keep, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q returned %T", ErrInvalidFilter, f.expr, out.Value())
	}
	return keep, nil
}

// Apply returns the interactions that match. users may be nil. The input
// order is preserved.
func (f *Filter) Apply(interactions []sequence.Interaction, users map[string]User) ([]sequence.Interaction, error) {
	if f == nil {
		return interactions, nil
	}

	kept := make([]sequence.Interaction, 0, len(interactions))
	for i := range interactions {
		in := &interactions[i]
		ok, err := f.Match(in, users[in.UserID])
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, *in)
		}
	}
	metrics.DatasetRows.WithLabelValues(RatingsFile, "filtered").Set(float64(len(kept)))
	return kept, nil
}
