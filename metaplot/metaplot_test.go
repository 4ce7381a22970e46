// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metaplot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaPlotArgs(t *testing.T) {
	m := MetaPlot{
		Script: "/scripts/metaplot.R",
		Input:  "/work/sample_m6A_abs_dist.txt",
		OutDir: "/work/",
		Prefix: "sample",
		Type:   "m6A",
	}
	got, err := m.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Rscript", "/scripts/metaplot.R",
		"-i", "/work/sample_m6A_abs_dist.txt",
		"-o", "/work/",
		"-p", "sample",
		"-t", "m6A",
	}, got)

	m.Cmd = "/opt/R/bin/Rscript"
	cmd, err := CommandContext(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "/opt/R/bin/Rscript", cmd.Args[0])

	_, err = MetaPlot{Script: "metaplot.R", Type: "psi"}.Args()
	assert.Equal(t, ErrMissingRequired, err)
}

func TestDockerArgs(t *testing.T) {
	inner, err := MetaPlot{
		Script: "/scripts/metaplot.R",
		Input:  "/output/sample_psi_abs_dist.txt",
		OutDir: "/output/",
		Prefix: "sample",
		Type:   "psi",
	}.Args()
	require.NoError(t, err)

	d := Docker{
		Remove:  true,
		Mounts:  []string{"/data/run:/output", "/data/scripts:/scripts"},
		Workdir: "/output",
		Command: inner,
	}
	got, err := d.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"docker", "run", "--rm",
		"-v", "/data/run:/output",
		"-v", "/data/scripts:/scripts",
		"-w", "/output",
		DefaultImage,
		"Rscript", "/scripts/metaplot.R",
		"-i", "/output/sample_psi_abs_dist.txt",
		"-o", "/output/",
		"-p", "sample",
		"-t", "psi",
	}, got)

	d.Image = "example/r:2"
	d.Remove = false
	cmd, err := CommandContext(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"docker", "run", "-v", "/data/run:/output"}, cmd.Args[:4])
	assert.Contains(t, cmd.Args, "example/r:2")
	assert.NotContains(t, cmd.Args, DefaultImage)

	_, err = Docker{}.Args()
	assert.Equal(t, ErrMissingRequired, err)
}

func TestWriteScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scripts")
	path, err := WriteScript(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ScriptName), path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script, b)
	assert.NotEmpty(t, b)
}
