// rankbench - LLM Re-ranking Evaluation for Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rankbench

// Package main is the rankbench command line.
//
// # Commands
//
//	rankbench download            fetch and extract MovieLens 100k
//	rankbench splits --split X    write the split instances as JSON lines
//	rankbench evaluate --ranker Y run a ranker and report NDCG@k
//	rankbench version             print build information
//
// # Configuration
//
// Every command loads its configuration in three layers: built-in defaults,
// an optional YAML file (--config, CONFIG_PATH or ./config.yaml), and
// environment variables. Command-line flags override all three. The merged
// configuration is validated before anything runs.
//
// # Signals
//
// SIGINT and SIGTERM cancel the command context. An evaluation stops handing
// out instances, waits for in-flight ranker calls and marks the stored run as
// failed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/rankbench/internal/config"
	"github.com/tomtom215/rankbench/internal/logging"
)

// Set by -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rankbench",
		Short: "rankbench - LLM re-ranking evaluation on MovieLens 100k",
		Long: `rankbench builds leave-one-out evaluation instances from MovieLens 100k,
asks a ranker to order each user's candidates and reports NDCG@k.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: json or console")

	cmd.AddCommand(
		newDownloadCmd(opts),
		newSplitsCmd(opts),
		newEvaluateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration, applies the persistent flags and any
// command-specific overrides, validates the result and initializes logging.
func (o *rootOptions) load(override func(*config.Config)) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rankbench:", err)
		os.Exit(1)
	}
}
