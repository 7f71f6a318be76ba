// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/logging"
	"github.com/tomtom215/rankbench/internal/runner"
	"github.com/tomtom215/rankbench/internal/sequence"
)

// splitFlags are the sampling flags shared by splits and evaluate.
type splitFlags struct {
	split      string
	seed       int64
	candidates int
	window     int
}

func (f *splitFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.split, "split", "", "split to build: train, validation or test")
	fs.Int64Var(&f.seed, "seed", 0, "random seed for candidate sampling")
	fs.IntVar(&f.candidates, "candidates", 0, "negative candidates per instance")
	fs.IntVar(&f.window, "window", 0, "interaction window size")
}

// apply copies the flags the user actually set onto cfg.
func (f *splitFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("split") {
		cfg.Split = f.split
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("candidates") {
		cfg.Candidates = f.candidates
	}
	if fs.Changed("window") {
		cfg.Window = f.window
	}
}

// splitRecord is one exported line. Presented is omitted for the train split.
type splitRecord struct {
	sequence.SplitInstance
	Presented []string `json:"presented,omitempty"`
}

func newSplitsCmd(root *rootOptions) *cobra.Command {
	var (
		flags splitFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Build split instances and write them as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load(func(c *config.Config) { flags.apply(cmd, c) })
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ds, err := loadDataset(ctx, cfg)
			if err != nil {
				return err
			}
			idx, err := sequence.NewIndex(ds.Interactions)
			if err != nil {
				return err
			}
			splits, err := runner.BuildSplits(idx, runner.SplitOptions{
				Kind:              cfg.SplitKind(),
				Seed:              cfg.Seed,
				Options:           cfg.SequenceOptions(),
				SkipPoolExhausted: cfg.Eval.SkipPoolExhausted,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out) //nolint:gosec // user-supplied output path
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeSplits(w, splits, cfg.Seed); err != nil {
				return err
			}

			logging.Ctx(ctx).Info().
				Str("split", splits.Kind.String()).
				Int("instances", len(splits.Instances)).
				Int("skipped", len(splits.Skipped)).
				Str("out", out).
				Msg("Wrote split instances")
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

// writeSplits writes one JSON object per instance, with the presentation
// order an evaluation of the same seed would use.
func writeSplits(w io.Writer, splits *runner.Splits, seed int64) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	var presented [][]string
	if splits.Kind.HasTarget() {
		presented = runner.Present(splits.Instances, seed)
	}
	for i := range splits.Instances {
		rec := splitRecord{SplitInstance: splits.Instances[i]}
		if presented != nil {
			rec.Presented = presented[i]
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode instance %d: %w", i, err)
		}
	}
	return bw.Flush()
}
