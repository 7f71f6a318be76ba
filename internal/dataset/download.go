// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tomtom215/rankbench/internal/logging"
)

// DownloadOptions configures Download.
type DownloadOptions struct {
	// URL of ml-100k.zip.
	URL string

	// Dir receives the archive and the extracted ml-100k directory.
	Dir string

	// Timeout bounds the HTTP transfer (0 = no limit beyond ctx).
	Timeout time.Duration

	// Progress renders a byte progress bar on stderr.
	Progress bool

	// Force downloads even when the files already exist.
	Force bool
}

// Download fetches and extracts the archive into opts.Dir. It is a no-op when
// the ratings file already exists, unless Force is set. The archive is kept
// next to the extracted files.
func Download(ctx context.Context, opts DownloadOptions) error {
	log := logging.Ctx(ctx)

	if !opts.Force && Exists(opts.Dir) {
		log.Debug().Str("dir", opts.Dir).Msg("dataset already present, skipping download")
		return nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("dataset: create %s: %w", opts.Dir, err)
	}

	archive := filepath.Join(opts.Dir, ArchiveDir+".zip")
	if opts.Force || !fileExists(archive) {
		if err := fetch(ctx, opts, archive); err != nil {
			return err
		}
	}

	n, err := extract(archive, opts.Dir)
	if err != nil {
		return err
	}
	if !Exists(opts.Dir) {
		return fmt.Errorf("%w: archive %s has no %s/%s", ErrNotFound, archive, ArchiveDir, RatingsFile)
	}
	log.Info().Str("dir", filepath.Join(opts.Dir, ArchiveDir)).Int("files", n).Msg("dataset extracted")
	return nil
}

// fetch downloads opts.URL to dst through a temp file renamed on success.
func fetch(ctx context.Context, opts DownloadOptions, dst string) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("dataset: create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("dataset: download %s: %w", opts.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dataset: download %s: HTTP %d", opts.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".ml-100k-*.zip")
	if err != nil {
		return fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	var w io.Writer = tmp
	if opts.Progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+ArchiveDir)
		w = io.MultiWriter(tmp, bar)
	}

	written, err := io.Copy(w, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("dataset: write archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("dataset: move archive: %w", err)
	}

	logging.Ctx(ctx).Info().Str("url", opts.URL).Int64("bytes", written).Msg("dataset downloaded")
	return nil
}

// extract unpacks archive under dir and returns the number of files written.
// Entries that would escape dir are rejected.
func extract(archive, dir string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return 0, fmt.Errorf("dataset: open archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(root, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return n, fmt.Errorf("dataset: archive entry %q escapes %s", f.Name, dir)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return n, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return n, fmt.Errorf("dataset: extract %s: %w", f.Name, err)
		}
		n++
	}
	return n, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // archive size is bounded by the download
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
