// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// nanomd detects RNA modification sites from nanopore direct RNA reads
// carrying basecaller modification tags and summarises their distribution
// over transcript features.
//
// The detectMod command calls m6A, m5C, pseudouridine and A-to-I sites
// from aligned reads, splits them by modification type, calculates the
// location of each site relative to the 5'UTR, CDS and 3'UTR of its
// transcript and draws a metagene plot for each type. Steps whose output
// already exists in the output directory are skipped, so an interrupted
// run can be resumed by repeating the command.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kortschak/nanomd/metaplot"
	"github.com/kortschak/nanomd/pipeline"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		var logged loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintf(os.Stderr, "nanomd: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "nanomd",
		Short:         "Detect RNA modification sites from nanopore direct RNA reads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(detectModCommand())
	return root
}

// loggedError is an error that has already been reported to the log.
type loggedError struct {
	error
}

func (e loggedError) Unwrap() error { return e.error }

func detectModCommand() *cobra.Command {
	var (
		cfg      pipeline.Config
		logLevel string
		logFile  string
	)

	cmd := &cobra.Command{
		Use:   "detectMod",
		Short: "Detect modification sites and plot their metagene distribution",
		Long: `Detect modification sites from aligned nanopore reads carrying MM and ML
base modification tags, split them by modification type (m6A, m5C, psi
and AtoI), locate each site relative to transcript features and draw a
metagene plot for each type.

Output files are written to the output directory with the given prefix:

  <prefix>.bed                    all modification sites
  <prefix>_<type>.bed             sites of a single modification type
  <prefix>_<type>_abs_dist.txt    site locations relative to features
  <prefix>_<type>_metagene.pdf    metagene plot

A step is skipped if its output file already exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = os.Stderr
			if logFile != "" {
				f, err := os.Create(logFile)
				if err != nil {
					// Oh, the irony.
					return errors.Wrap(err, "failed to create log file")
				}
				defer f.Close()
				w = f
			}
			log, err := newLogger(logLevel, w)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return err
			}

			// External process output goes to the log destination.
			p := pipeline.New(cfg, log, w)
			elapsed, err := p.Run(cmd.Context())
			if err != nil {
				log.Error().Err(err).Msg("detecting modification sites failed")
				return loggedError{err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Detecting modification sites Done, time cost: %s\n", pipeline.FormatDuration(elapsed))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Input, "input", "i", "", "input FASTQ file of basecalled reads (required)")
	flags.StringVarP(&cfg.Alignment, "sam", "s", "", "input SAM or BAM file of aligned reads (required)")
	flags.StringVarP(&cfg.Transcripts, "bed", "b", "", "input BED12 file of transcript models (required)")
	flags.StringVarP(&cfg.Regions, "regions", "r", "", "input transcript region sizes file (required)")
	flags.StringVarP(&cfg.Output, "output", "o", ".", "output directory")
	flags.StringVarP(&cfg.Prefix, "prefix", "p", "prefix", "output file prefix")
	flags.Float64Var(&cfg.PValue, "pvalue", 0.98, "minimum modification probability for a read to be counted as modified")
	flags.IntVar(&cfg.MinReads, "min-reads", 1, "minimum number of modified reads for a site to be reported")
	flags.BoolVar(&cfg.Docker, "docker", false, "run plotting in a docker container")
	flags.StringVar(&cfg.Rscript, "rscript", "Rscript", "Rscript executable")
	flags.StringVar(&cfg.DockerCmd, "docker-cmd", "docker", "docker executable")
	flags.StringVar(&cfg.Image, "image", metaplot.DefaultImage, "container image used for plotting")
	flags.StringVar(&cfg.Scripts, "scripts", "", "directory holding the plotting script (default <output>/.nanomd_scripts)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFile, "log-file", "", "log file name (default to stderr)")

	for _, name := range []string{"input", "sam", "bed", "regions"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// newLogger returns a logger writing at the given level to w. Output to
// stderr is formatted for the console.
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), errors.Wrap(err, "invalid log level")
	}
	if w == os.Stderr {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
