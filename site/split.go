// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package site

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"

	"github.com/kortschak/nanomd/modtag"
)

// Path returns the path of the site BED for the given output
// directory and prefix.
func Path(dir, prefix string) string {
	return filepath.Join(dir, prefix+".bed")
}

// TypedPath returns the path of the site BED holding sites of the
// modification type typ.
func TypedPath(dir, prefix, typ string) string {
	return filepath.Join(dir, prefix+"_"+typ+".bed")
}

// Open opens the named site BED file for reading. The file may be gzip
// compressed. An empty file is returned as an empty stream since a file
// with no sites is valid.
func Open(path string) (io.ReadCloser, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		if errors.Cause(err) == xopen.ErrNoContent {
			return io.NopCloser(strings.NewReader("")), nil
		}
		return nil, err
	}
	return f, nil
}

// Split writes the sites in the site BED file in to one file per
// modification type listed in modtag.Types. The files are named by
// TypedPath and are created even when no site of their type exists.
// Sites of unlisted types are not written. Split returns the number
// of sites written for each type.
func Split(in, dir, prefix string) (map[string]int, error) {
	f, err := Open(in)
	if err != nil {
		return nil, errors.Wrapf(err, "site: failed to open %q", in)
	}
	defer f.Close()

	files := make(map[string]*xopen.Writer, len(modtag.Types))
	writers := make(map[string]*Writer, len(modtag.Types))
	defer func() {
		for _, w := range files {
			w.Close()
		}
	}()
	for _, typ := range modtag.Types {
		path := TypedPath(dir, prefix, typ)
		w, err := xopen.Wopen(path)
		if err != nil {
			return nil, errors.Wrapf(err, "site: failed to create %q", path)
		}
		files[typ] = w
		writers[typ] = NewWriter(w)
	}

	counts := make(map[string]int, len(modtag.Types))
	r := NewReader(f)
	for {
		s, err := r.Read()
		if err != nil {
			if err != io.EOF {
				return nil, errors.Wrapf(err, "site: failed to read %q", in)
			}
			break
		}
		w, ok := writers[s.Code.Name()]
		if !ok {
			continue
		}
		err = w.Write(s)
		if err != nil {
			return nil, err
		}
		counts[s.Code.Name()]++
	}

	for _, typ := range modtag.Types {
		err = writers[typ].Flush()
		if err != nil {
			return nil, err
		}
		err = files[typ].Close()
		delete(files, typ)
		if err != nil {
			return nil, errors.Wrapf(err, "site: failed to close %q", TypedPath(dir, prefix, typ))
		}
	}
	return counts, nil
}
