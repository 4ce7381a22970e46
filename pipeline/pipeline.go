// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs the modification detection steps in order,
// skipping any step whose output file already exists.
//
// The steps are modification calling, splitting sites by modification type,
// calculating feature distances for each type and plotting each type. The
// existence of a step's output is taken as proof that the step completed;
// outputs are not validated and are not checked against changed inputs.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kortschak/nanomd/modtag"
	"github.com/kortschak/nanomd/site"
)

var ErrMissingRequired = errors.New("pipeline: missing required argument")

// Config holds the parameters for a pipeline run.
type Config struct {
	Input       string // FASTQ reads.
	Alignment   string // SAM or BAM alignments.
	Transcripts string // BED12 transcript models.
	Regions     string // Transcript region sizes.

	Output string // Output directory.
	Prefix string // Output file prefix.

	// PValue is the minimum per-read modification
	// probability for a read to be counted as modified.
	PValue float64

	// MinReads is the minimum number of modified
	// reads for a site to be reported.
	MinReads int

	// Docker specifies that plotting is run in a
	// docker container.
	Docker bool

	Rscript   string // Rscript executable, default "Rscript".
	DockerCmd string // docker executable, default "docker".
	Image     string // Container image, default metaplot.DefaultImage.

	// Scripts is the directory holding the plotting
	// script. If empty, the script is written into a
	// hidden directory in Output.
	Scripts string
}

// Validate returns an error if required parameters are missing or invalid.
func (c Config) Validate() error {
	for _, p := range []struct {
		name, val string
	}{
		{"input", c.Input},
		{"sam", c.Alignment},
		{"bed", c.Transcripts},
		{"regions", c.Regions},
		{"output", c.Output},
		{"prefix", c.Prefix},
	} {
		if p.val == "" {
			return errors.Wrap(ErrMissingRequired, p.name)
		}
	}
	if c.PValue < 0 || 1 < c.PValue {
		return errors.Errorf("pipeline: pvalue out of range [0,1]: %v", c.PValue)
	}
	return nil
}

// DistPath returns the path of the distance file for the typed site BED in.
func DistPath(in string) string {
	return strings.TrimSuffix(in, ".bed") + "_abs_dist.txt"
}

// PlotPath returns the path of the metagene plot for the typed site BED in.
func PlotPath(in string) string {
	return strings.TrimSuffix(in, ".bed") + "_metagene.pdf"
}

// Stages performs the work of each pipeline step.
type Stages interface {
	// Call writes modification sites to out.
	Call(ctx context.Context, out string) error
	// Split splits the sites in into typed site files.
	Split(ctx context.Context, in string) error
	// Distance writes the feature distances of the sites in to out.
	Distance(ctx context.Context, in, out string) error
	// Plot plots the distances in dist for the modification type typ.
	Plot(ctx context.Context, dist, typ string) error
}

// Pipeline is a modification detection run.
type Pipeline struct {
	Config Config
	Stages Stages
	Log    zerolog.Logger
}

// New returns a Pipeline using the Local stages. The output of
// external processes is written to stderr.
func New(cfg Config, log zerolog.Logger, stderr io.Writer) *Pipeline {
	return &Pipeline{
		Config: cfg,
		Stages: &Local{Config: cfg, Log: log, Stderr: stderr},
		Log:    log,
	}
}

// Run runs the pipeline, returning the elapsed time.
func (p *Pipeline) Run(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	p.Log.Info().Msg("detecting modification start")

	err := os.MkdirAll(p.Config.Output, 0o755)
	if err != nil {
		return time.Since(start), errors.Wrap(err, "pipeline: failed to create output directory")
	}

	sites := site.Path(p.Config.Output, p.Config.Prefix)
	err = p.step("getting modification from reads", sites, func() error {
		return p.Stages.Call(ctx, sites)
	})
	if err != nil {
		return time.Since(start), err
	}

	// Only the first typed file is checked.
	err = p.step("splitting modification sites", site.TypedPath(p.Config.Output, p.Config.Prefix, modtag.Types[0]), func() error {
		return p.Stages.Split(ctx, sites)
	})
	if err != nil {
		return time.Since(start), err
	}

	typed := make([]string, len(modtag.Types))
	for i, typ := range modtag.Types {
		typed[i] = site.TypedPath(p.Config.Output, p.Config.Prefix, typ)
	}
	for _, in := range typed {
		dist := DistPath(in)
		err = p.step("calculating absolute distance", dist, func() error {
			return p.Stages.Distance(ctx, in, dist)
		})
		if err != nil {
			return time.Since(start), err
		}
	}
	for i, in := range typed {
		dist := DistPath(in)
		typ := modtag.Types[i]
		err = p.step("plotting metagene", PlotPath(in), func() error {
			return p.Stages.Plot(ctx, dist, typ)
		})
		if err != nil {
			return time.Since(start), err
		}
	}

	elapsed := time.Since(start)
	p.Log.Info().Str("time_cost", FormatDuration(elapsed)).Msg("detecting modification sites done")
	return elapsed, nil
}

// step runs fn unless the output file out exists.
func (p *Pipeline) step(desc, out string, fn func() error) error {
	if exists(out) {
		p.Log.Info().Str("output", out).Msgf("%s: output exists, skipping", desc)
		return nil
	}
	p.Log.Info().Str("output", out).Msg(desc)
	err := fn()
	if err != nil {
		return errors.Wrap(err, desc)
	}
	p.Log.Info().Str("output", out).Msgf("%s done", desc)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatDuration formats d as hours, minutes and seconds.
func FormatDuration(d time.Duration) string {
	s := d.Seconds()
	h := int(s) / 3600
	m := (int(s) % 3600) / 60
	s -= float64(h*3600 + m*60)
	return fmt.Sprintf("%dh%dm%.2fs", h, m, s)
}
