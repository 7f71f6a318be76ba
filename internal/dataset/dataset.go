// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package dataset downloads and parses MovieLens 100k.
//
// Three files of the ml-100k archive are used:
//
//	u.data  user \t item \t rating \t timestamp
//	u.item  id|title|release|video release|url|19 genre flags   (Latin-1)
//	u.user  id|age|gender|occupation|zip
//
// Parsers are strict: a malformed row fails the load with a *ParseError
// naming file and line.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomtom215/rankbench/internal/sequence"
)

// ArchiveDir is the directory the archive extracts to.
const ArchiveDir = "ml-100k"

// File names inside ArchiveDir.
const (
	RatingsFile = "u.data"
	ItemsFile   = "u.item"
	UsersFile   = "u.user"
)

// Genres lists the u.item genre flag columns in file order.
var Genres = [...]string{
	"unknown", "Action", "Adventure", "Animation", "Children", "Comedy",
	"Crime", "Documentary", "Drama", "Fantasy", "Film-Noir", "Horror",
	"Musical", "Mystery", "Romance", "Sci-Fi", "Thriller", "War", "Western",
}

var (
	// ErrMalformedRow is wrapped by every *ParseError.
	ErrMalformedRow = errors.New("dataset: malformed row")

	// ErrNotFound is returned when the extracted files are missing.
	ErrNotFound = errors.New("dataset: ml-100k not found")
)

// ParseError locates a malformed row.
type ParseError struct {
	File   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dataset: %s:%d: %s", e.File, e.Line, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedRow.
func (e *ParseError) Unwrap() error { return ErrMalformedRow }

// Item is one movie from u.item.
type Item struct {
	ID           string   `json:"item_id"`
	Title        string   `json:"title"`
	Release      string   `json:"release,omitempty"`
	VideoRelease string   `json:"video_release,omitempty"`
	URL          string   `json:"url,omitempty"`
	Genres       []string `json:"genres,omitempty"`
}

// User is one row of u.user.
type User struct {
	ID         string `json:"user_id"`
	Age        int    `json:"age"`
	Gender     string `json:"gender"`
	Occupation string `json:"occupation"`
	ZipCode    string `json:"zip_code"`
}

// Dataset is a fully loaded ml-100k directory.
type Dataset struct {
	Interactions []sequence.Interaction
	Items        map[string]Item
	Users        map[string]User
}

// Titles maps item id to title, for prompts.
func (d *Dataset) Titles() map[string]string {
	titles := make(map[string]string, len(d.Items))
	for id, item := range d.Items {
		titles[id] = item.Title
	}
	return titles
}

// Path returns dir/ml-100k/name.
func Path(dir, name string) string {
	return filepath.Join(dir, ArchiveDir, name)
}

// Exists reports whether the ratings file is present under dir.
func Exists(dir string) bool {
	_, err := os.Stat(Path(dir, RatingsFile))
	return err == nil
}

// Load parses ratings, items and users from dir/ml-100k.
func Load(dir string) (*Dataset, error) {
	if !Exists(dir) {
		return nil, fmt.Errorf("%w under %s (run `rankbench download`)", ErrNotFound, dir)
	}

	interactions, err := LoadRatings(Path(dir, RatingsFile))
	if err != nil {
		return nil, err
	}
	items, err := LoadItems(Path(dir, ItemsFile))
	if err != nil {
		return nil, err
	}
	users, err := LoadUsers(Path(dir, UsersFile))
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Interactions: interactions,
		Items:        make(map[string]Item, len(items)),
		Users:        make(map[string]User, len(users)),
	}
	for _, it := range items {
		ds.Items[it.ID] = it
	}
	for _, u := range users {
		ds.Users[u.ID] = u
	}
	return ds, nil
}
