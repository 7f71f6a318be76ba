// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/dataset"
	"github.com/tomtom215/rankbench/internal/logging"
)

func newDownloadCmd(root *rootOptions) *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and extract MovieLens 100k",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(func(c *config.Config) {
				if dir != "" {
					c.Dataset.Dir = dir
				}
			})
			if err != nil {
				return err
			}
			return dataset.Download(cmd.Context(), dataset.DownloadOptions{
				URL:      cfg.Dataset.URL,
				Dir:      cfg.Dataset.Dir,
				Timeout:  cfg.Dataset.DownloadTimeout,
				Progress: cfg.Eval.Progress,
				Force:    force,
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default dataset.dir)")
	cmd.Flags().BoolVar(&force, "force", false, "download even if the files exist")
	return cmd
}

// loadDataset downloads the dataset when allowed and missing, loads it and
// applies the configured row filter to its interactions.
func loadDataset(ctx context.Context, cfg *config.Config) (*dataset.Dataset, error) {
	if cfg.Dataset.AutoDownload {
		if err := dataset.Download(ctx, dataset.DownloadOptions{
			URL:      cfg.Dataset.URL,
			Dir:      cfg.Dataset.Dir,
			Timeout:  cfg.Dataset.DownloadTimeout,
			Progress: cfg.Eval.Progress,
		}); err != nil {
			return nil, err
		}
	}

	ds, err := dataset.Load(cfg.Dataset.Dir)
	if err != nil {
		return nil, err
	}

	if cfg.Dataset.Filter != "" {
		f, err := dataset.NewFilter(cfg.Dataset.Filter)
		if err != nil {
			return nil, err
		}
		before := len(ds.Interactions)
		if ds.Interactions, err = f.Apply(ds.Interactions, ds.Users); err != nil {
			return nil, err
		}
		logging.Ctx(ctx).Info().
			Str("filter", f.String()).
			Int("before", before).
			Int("after", len(ds.Interactions)).
			Msg("Applied dataset filter")
	}
	return ds, nil
}
