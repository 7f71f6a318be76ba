// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/tomtom215/rankbench/internal/metrics"
	"github.com/tomtom215/rankbench/internal/sequence"
)

const (
	ratingFields = 4
	itemFields   = 5 + len(Genres)
	userFields   = 5
)

// LoadRatings parses a u.data file.
func LoadRatings(path string) ([]sequence.Interaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open ratings: %w", err)
	}
	defer f.Close()

	rows, err := ReadRatings(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	metrics.DatasetRows.WithLabelValues(RatingsFile, "loaded").Set(float64(len(rows)))
	return rows, nil
}

// ReadRatings parses tab-separated ratings. name is used in errors.
func ReadRatings(r io.Reader, name string) ([]sequence.Interaction, error) {
	var out []sequence.Interaction
	err := scanLines(r, name, "\t", ratingFields, func(line int, f []string) error {
		rating, err := strconv.Atoi(f[2])
		if err != nil {
			return fmt.Errorf("rating %q is not an integer", f[2])
		}
		ts, err := strconv.ParseInt(f[3], 10, 64)
		if err != nil {
			return fmt.Errorf("timestamp %q is not an integer", f[3])
		}
		if f[0] == "" || f[1] == "" {
			return fmt.Errorf("empty user or item id")
		}
		out = append(out, sequence.Interaction{
			UserID:    f[0],
			ItemID:    f[1],
			Rating:    rating,
			Timestamp: ts,
		})
		return nil
	})
	return out, err
}

// LoadItems parses a Latin-1 encoded u.item file.
func LoadItems(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open items: %w", err)
	}
	defer f.Close()

	items, err := ReadItems(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	metrics.DatasetRows.WithLabelValues(ItemsFile, "loaded").Set(float64(len(items)))
	return items, nil
}

// ReadItems decodes r from Latin-1 and parses pipe-separated items.
func ReadItems(r io.Reader, name string) ([]Item, error) {
	var out []Item
	decoded := charmap.ISO8859_1.NewDecoder().Reader(r)
	err := scanLines(decoded, name, "|", itemFields, func(line int, f []string) error {
		if f[0] == "" {
			return fmt.Errorf("empty item id")
		}
		item := Item{
			ID:           f[0],
			Title:        f[1],
			Release:      f[2],
			VideoRelease: f[3],
			URL:          f[4],
		}
		for i, flag := range f[5:] {
			switch flag {
			case "1":
				item.Genres = append(item.Genres, Genres[i])
			case "0":
			default:
				return fmt.Errorf("genre flag %s = %q, want 0 or 1", Genres[i], flag)
			}
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

// LoadUsers parses a u.user file.
func LoadUsers(path string) ([]User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open users: %w", err)
	}
	defer f.Close()

	users, err := ReadUsers(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	metrics.DatasetRows.WithLabelValues(UsersFile, "loaded").Set(float64(len(users)))
	return users, nil
}

// ReadUsers parses pipe-separated users.
func ReadUsers(r io.Reader, name string) ([]User, error) {
	var out []User
	err := scanLines(r, name, "|", userFields, func(line int, f []string) error {
		age, err := strconv.Atoi(f[1])
		if err != nil {
			return fmt.Errorf("age %q is not an integer", f[1])
		}
		out = append(out, User{
			ID:         f[0],
			Age:        age,
			Gender:     f[2],
			Occupation: f[3],
			ZipCode:    f[4],
		})
		return nil
	})
	return out, err
}

// scanLines splits each non-blank line of r on sep, checks the field count and
// hands the fields to fn. Errors from fn become *ParseError.
func scanLines(r io.Reader, name, sep string, fields int, fn func(line int, f []string) error) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		f := strings.Split(text, sep)
		if len(f) != fields {
			return &ParseError{File: name, Line: line, Reason: fmt.Sprintf("got %d fields, want %d", len(f), fields)}
		}
		if err := fn(line, f); err != nil {
			return &ParseError{File: name, Line: line, Reason: err.Error()}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("dataset: read %s: %w", name, err)
	}
	return nil
}
