// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/rankbench/internal/sequence"
)

const sampleRatings = "196\t242\t3\t881250949\n186\t302\t3\t891717742\r\n\n22\t377\t1\t878887116\n"

// genre flags: Animation, Children, Comedy
const toyStory = "1|Toy Story (1995)|01-Jan-1995||http://us.imdb.com/M/title-exact?Toy%20Story%20(1995)|0|0|0|1|1|1|0|0|0|0|0|0|0|0|0|0|0|0|0\n"

const sampleUsers = "1|24|M|technician|85711\n2|53|F|other|94043\n"

func TestReadRatings(t *testing.T) {
	t.Parallel()

	got, err := ReadRatings(strings.NewReader(sampleRatings), "u.data")
	if err != nil {
		t.Fatalf("ReadRatings() error = %v", err)
	}
	want := []sequence.Interaction{
		{UserID: "196", ItemID: "242", Rating: 3, Timestamp: 881250949},
		{UserID: "186", ItemID: "302", Rating: 3, Timestamp: 891717742},
		{UserID: "22", ItemID: "377", Rating: 1, Timestamp: 878887116},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadRatings() = %+v, want %+v", got, want)
	}
}

func TestReadRatings_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantLine int
		wantText string
	}{
		{"too few fields", "1\t2\t3\n", 1, "got 3 fields, want 4"},
		{"bad rating", "1\t2\t3\t4\n1\t2\tfive\t4\n", 2, `rating "five"`},
		{"bad timestamp", "1\t2\t3\tyesterday\n", 1, "timestamp"},
		{"empty id", "\t2\t3\t4\n", 1, "empty user or item id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadRatings(strings.NewReader(tt.input), "u.data")
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if !errors.Is(err, ErrMalformedRow) {
				t.Error("ParseError should match ErrMalformedRow")
			}
			if perr.Line != tt.wantLine || perr.File != "u.data" {
				t.Errorf("location = %s:%d, want u.data:%d", perr.File, perr.Line, tt.wantLine)
			}
			if !strings.Contains(perr.Reason, tt.wantText) {
				t.Errorf("Reason = %q, want %q", perr.Reason, tt.wantText)
			}
		})
	}
}

func TestReadItems(t *testing.T) {
	t.Parallel()

	// 0xE9 is e-acute in Latin-1 and invalid on its own in UTF-8
	latin1 := "2|Les Mis\xe9rables (1995)|01-Jan-1995||http://x|0|0|0|0|0|0|0|0|1|0|0|0|0|0|0|0|0|1|0\n"

	got, err := ReadItems(strings.NewReader(toyStory+latin1), "u.item")
	if err != nil {
		t.Fatalf("ReadItems() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Title != "Toy Story (1995)" || got[0].Release != "01-Jan-1995" || got[0].VideoRelease != "" {
		t.Errorf("item 1 = %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].Genres, []string{"Animation", "Children", "Comedy"}) {
		t.Errorf("item 1 genres = %v", got[0].Genres)
	}
	if got[1].Title != "Les Misérables (1995)" {
		t.Errorf("item 2 title = %q, want Latin-1 decoded", got[1].Title)
	}
	if !reflect.DeepEqual(got[1].Genres, []string{"Drama", "War"}) {
		t.Errorf("item 2 genres = %v", got[1].Genres)
	}
}

func TestReadItems_Malformed(t *testing.T) {
	t.Parallel()

	for name, input := range map[string]string{
		"short row": "1|Title|date\n",
		"bad flag":  strings.Replace(toyStory, "|1|1|1|", "|1|2|1|", 1),
		"empty id":  "|" + strings.SplitN(toyStory, "|", 2)[1],
	} {
		if _, err := ReadItems(strings.NewReader(input), "u.item"); !errors.Is(err, ErrMalformedRow) {
			t.Errorf("%s: error = %v, want ErrMalformedRow", name, err)
		}
	}
}

func TestReadUsers(t *testing.T) {
	t.Parallel()

	got, err := ReadUsers(strings.NewReader(sampleUsers), "u.user")
	if err != nil {
		t.Fatalf("ReadUsers() error = %v", err)
	}
	want := []User{
		{ID: "1", Age: 24, Gender: "M", Occupation: "technician", ZipCode: "85711"},
		{ID: "2", Age: 53, Gender: "F", Occupation: "other", ZipCode: "94043"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadUsers() = %+v", got)
	}

	if _, err := ReadUsers(strings.NewReader("1|old|M|x|1\n"), "u.user"); !errors.Is(err, ErrMalformedRow) {
		t.Errorf("bad age error = %v", err)
	}
}

// writeFixture lays out a minimal ml-100k directory under dir.
func writeFixture(t *testing.T, dir string) {
	t.Helper()
	root := filepath.Join(dir, ArchiveDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		RatingsFile: sampleRatings,
		ItemsFile:   toyStory,
		UsersFile:   sampleUsers,
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load() on empty dir error = %v, want ErrNotFound", err)
	}

	writeFixture(t, dir)
	ds, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.Interactions) != 3 || len(ds.Items) != 1 || len(ds.Users) != 2 {
		t.Errorf("Load() sizes = %d/%d/%d", len(ds.Interactions), len(ds.Items), len(ds.Users))
	}
	if got := ds.Titles()["1"]; got != "Toy Story (1995)" {
		t.Errorf("Titles()[1] = %q", got)
	}
	if ds.Users["2"].Gender != "F" {
		t.Errorf("Users[2] = %+v", ds.Users["2"])
	}
}
