// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metaplot provides interaction with the metagene plotting R script,
// run either directly or within a docker container.
package metaplot

import (
	"context"
	_ "embed"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/biogo/external"
)

var ErrMissingRequired = errors.New("metaplot: missing required argument")

// ScriptName is the file name of the plotting script.
const ScriptName = "metaplot.R"

// Script is the metagene plotting script.
//
//go:embed metaplot.R
var Script []byte

// WriteScript writes the plotting script into dir, creating dir if
// necessary, and returns the path to the script.
func WriteScript(dir string) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ScriptName)
	return path, os.WriteFile(path, Script, 0o644)
}

// MetaPlot defines parameters for the metagene plotting script.
type MetaPlot struct {
	// Usage: Rscript metaplot.R -i dist.txt -o outdir/ -p prefix -t type
	//
	Cmd    string `buildarg:"{{if .}}{{.}}{{else}}Rscript{{end}}"` // Rscript
	Script string `buildarg:"{{.}}"`                               // "metaplot.R"

	Input  string `buildarg:"{{if .}}-i{{split}}{{.}}{{end}}"` // -i: distance file
	OutDir string `buildarg:"{{if .}}-o{{split}}{{.}}{{end}}"` // -o: output directory
	Prefix string `buildarg:"{{if .}}-p{{split}}{{.}}{{end}}"` // -p: output prefix
	Type   string `buildarg:"{{if .}}-t{{split}}{{.}}{{end}}"` // -t: modification type
}

// Args returns the command line described by m.
func (m MetaPlot) Args() ([]string, error) {
	if m.Script == "" || m.Input == "" || m.Type == "" {
		return nil, ErrMissingRequired
	}
	return external.Build(m)
}

// DefaultImage is the container image used when Docker.Image is empty.
const DefaultImage = "legendzdy/rbase:1.0.0"

// Docker defines parameters for running a command in a docker container.
type Docker struct {
	// Usage: docker run [--rm] [-v host:container]... [-w dir] image command...
	//
	Cmd    string `buildarg:"{{if .}}{{.}}{{else}}docker{{end}}{{split}}run"` // docker run
	Remove bool   `buildarg:"{{if .}}--rm{{end}}"`                            // --rm: remove the container on exit

	// Mounts are bind mounts in host:container form.
	Mounts  []string `buildarg:"{{range $i, $m := .}}{{if $i}}{{split}}{{end}}-v{{split}}{{$m}}{{end}}"` // -v: bind mounts
	Workdir string   `buildarg:"{{if .}}-w{{split}}{{.}}{{end}}"`                                     // -w: working directory in the container

	Image   string   `buildarg:"{{if .}}{{.}}{{else}}legendzdy/rbase:1.0.0{{end}}"`     // image
	Command []string `buildarg:"{{range $i, $a := .}}{{if $i}}{{split}}{{end}}{{$a}}{{end}}"` // command and arguments
}

// Args returns the command line described by d.
func (d Docker) Args() ([]string, error) {
	if len(d.Command) == 0 {
		return nil, ErrMissingRequired
	}
	return external.Build(d)
}

// Builder is a command line builder.
type Builder interface {
	Args() ([]string, error)
}

// CommandContext returns an exec.Cmd built from b that is killed when
// ctx is done.
func CommandContext(ctx context.Context, b Builder) (*exec.Cmd, error) {
	cl, err := b.Args()
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, cl[0], cl[1:]...), nil
}
