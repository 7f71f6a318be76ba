// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package sequence

import (
	"fmt"
	"strings"
)

// Interaction is a single row of the ratings log.
type Interaction struct {
	// UserID identifies the rating user.
	UserID string `json:"user_id"`

	// ItemID identifies the rated item.
	ItemID string `json:"item_id"`

	// Rating is the explicit rating (1-5 for MovieLens).
	Rating int `json:"rating"`

	// Timestamp is seconds since the Unix epoch. Histories are ordered by it.
	Timestamp int64 `json:"timestamp"`
}

// SplitKind selects which window of a history becomes an instance.
type SplitKind int

const (
	// SplitTrain uses history[-W:-2] and has no target.
	SplitTrain SplitKind = iota
	// SplitValidation uses history[-W:-2] with history[-2] as target.
	SplitValidation
	// SplitTest uses history[-W:-1] with history[-1] as target.
	SplitTest
)

// String returns the configuration name of the split kind.
func (k SplitKind) String() string {
	switch k {
	case SplitTrain:
		return "train"
	case SplitValidation:
		return "validation"
	case SplitTest:
		return "test"
	default:
		return "unknown"
	}
}

// HasTarget reports whether instances of this kind carry a held-out target.
func (k SplitKind) HasTarget() bool {
	return k == SplitValidation || k == SplitTest
}

// heldOut is the number of trailing history items hidden from this split's
// inputs. Validation hides its own target and the later test item.
func (k SplitKind) heldOut() int {
	if k == SplitTest {
		return 1
	}
	return 2
}

// MarshalText implements encoding.TextMarshaler.
func (k SplitKind) MarshalText() ([]byte, error) {
	if k < SplitTrain || k > SplitTest {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSplitKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SplitKind) UnmarshalText(text []byte) error {
	parsed, err := ParseSplitKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseSplitKind parses a split name. "valid" and "val" are accepted as
// aliases for validation.
func ParseSplitKind(s string) (SplitKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return SplitTrain, nil
	case "validation", "valid", "val":
		return SplitValidation, nil
	case "test":
		return SplitTest, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSplitKind, s)
	}
}

// SplitInstance is one user's evaluation record for a split kind.
type SplitInstance struct {
	// UserID is the user this instance was built from.
	UserID string `json:"uid"`

	// Kind is the split kind that produced the instance.
	Kind SplitKind `json:"split"`

	// Seq is the input window of the history, oldest first.
	Seq []string `json:"seq"`

	// Target is the held-out item. Empty for SplitTrain.
	Target string `json:"target,omitempty"`

	// Candidates are sampled items the user never interacted with.
	Candidates []string `json:"candidates"`
}

// HasTarget reports whether the instance carries an evaluation label.
func (s *SplitInstance) HasTarget() bool {
	return s.Kind.HasTarget()
}

// Options controls window and sample sizes.
type Options struct {
	// WindowSize is W in history[-W:...]. Must be at least 2.
	WindowSize int `json:"window_size"`

	// SampleSize is the number of negative candidates per instance.
	SampleSize int `json:"sample_size"`
}

// DefaultOptions returns the canonical configuration: window 10, 10 candidates.
func DefaultOptions() Options {
	return Options{
		WindowSize: 10,
		SampleSize: 10,
	}
}

// Validate checks option bounds.
func (o Options) Validate() error {
	if o.WindowSize < 2 {
		return fmt.Errorf("%w: window size must be >= 2, got %d", ErrInvalidOptions, o.WindowSize)
	}
	if o.SampleSize < 1 {
		return fmt.Errorf("%w: sample size must be >= 1, got %d", ErrInvalidOptions, o.SampleSize)
	}
	return nil
}
