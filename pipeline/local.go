// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kortschak/nanomd/caller"
	"github.com/kortschak/nanomd/featdist"
	"github.com/kortschak/nanomd/metaplot"
	"github.com/kortschak/nanomd/site"
)

// scriptDir is the directory within the output directory that the
// plotting script is written to when no script directory is given.
const scriptDir = ".nanomd_scripts"

// Local performs the pipeline steps in process, running plotting as an
// external process.
type Local struct {
	Config
	Log zerolog.Logger

	// Stderr receives the output of
	// external processes.
	Stderr io.Writer

	script string
}

// Call writes modification sites called from the configured reads
// and alignments to out.
func (l *Local) Call(ctx context.Context, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stats, err := caller.Caller{
		Reads:       l.Input,
		Alignment:   l.Alignment,
		Transcripts: l.Transcripts,
		MinProb:     l.PValue,
		MinReads:    l.MinReads,
	}.Run(out)
	if err != nil {
		return err
	}
	l.Log.Info().
		Int("records", stats.Records).
		Int("used", stats.Used).
		Int("no_tags", stats.NoTags).
		Int("unusable", stats.Unusable).
		Int("truncated", stats.Truncated).
		Int("calls", stats.Calls).
		Int("sites", stats.Sites).
		Int("unplaced", stats.Unplaced).
		Msg("called modification sites")
	return nil
}

// Split splits the sites in into typed site files in the output directory.
func (l *Local) Split(ctx context.Context, in string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	counts, err := site.Split(in, l.Output, l.Prefix)
	if err != nil {
		return err
	}
	ev := l.Log.Info()
	for typ, n := range counts {
		ev = ev.Int(typ, n)
	}
	ev.Msg("split modification sites")
	return nil
}

// Distance writes the feature distances of the sites in to out.
func (l *Local) Distance(ctx context.Context, in, out string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sum, err := featdist.Calculate(in, l.Regions, out)
	if err != nil {
		return err
	}
	l.Log.Info().
		Str("sites", filepath.Base(in)).
		Int("read", sum.Sites).
		Int("placed", sum.Placed).
		Int("utr5", sum.Counts[featdist.UTR5]).
		Int("cds", sum.Counts[featdist.CDS]).
		Int("utr3", sum.Counts[featdist.UTR3]).
		Float64("mean_rel", sum.MeanRel).
		Float64("median_rel", sum.MedianRel).
		Msg("calculated feature distances")
	return nil
}

// Plot runs the metagene plotting script for the distances in dist,
// either directly or in a docker container.
func (l *Local) Plot(ctx context.Context, dist, typ string) error {
	script, err := l.plotScript()
	if err != nil {
		return err
	}
	out, err := filepath.Abs(l.Output)
	if err != nil {
		return err
	}

	var b metaplot.Builder
	if l.Docker {
		scripts, err := filepath.Abs(filepath.Dir(script))
		if err != nil {
			return err
		}
		inner, err := metaplot.MetaPlot{
			Script: "/scripts/" + filepath.Base(script),
			Input:  "/output/" + filepath.Base(dist),
			OutDir: "/output/",
			Prefix: l.Prefix,
			Type:   typ,
		}.Args()
		if err != nil {
			return err
		}
		b = metaplot.Docker{
			Cmd:     l.DockerCmd,
			Remove:  true,
			Mounts:  []string{out + ":/output", scripts + ":/scripts"},
			Workdir: "/output",
			Image:   l.Image,
			Command: inner,
		}
	} else {
		input, err := filepath.Abs(dist)
		if err != nil {
			return err
		}
		b = metaplot.MetaPlot{
			Cmd:    l.Rscript,
			Script: script,
			Input:  input,
			OutDir: out + string(filepath.Separator),
			Prefix: l.Prefix,
			Type:   typ,
		}
	}

	cmd, err := metaplot.CommandContext(ctx, b)
	if err != nil {
		return err
	}
	cmd.Stdout = l.Stderr
	cmd.Stderr = l.Stderr
	l.Log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("running plot")
	err = cmd.Run()
	if err != nil {
		return errors.Wrapf(err, "failed to run %s", cmd.Args[0])
	}
	return nil
}

// plotScript returns the absolute path to the plotting script, writing
// it out if necessary. A script already present in a configured script
// directory is used as is.
func (l *Local) plotScript() (string, error) {
	if l.script != "" {
		return l.script, nil
	}
	dir := l.Scripts
	if dir == "" {
		dir = filepath.Join(l.Output, scriptDir)
	} else if exists(filepath.Join(dir, metaplot.ScriptName)) {
		path, err := filepath.Abs(filepath.Join(dir, metaplot.ScriptName))
		if err != nil {
			return "", err
		}
		l.script = path
		return path, nil
	}
	path, err := metaplot.WriteScript(dir)
	if err != nil {
		return "", errors.Wrap(err, "failed to write plotting script")
	}
	l.script, err = filepath.Abs(path)
	return l.script, err
}

var _ Stages = (*Local)(nil)
