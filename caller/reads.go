// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caller

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	bioseq "github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/kortschak/nanomd/modtag"
)

// read holds the sequence and modification tags of a sequenced read.
type read struct {
	seq []byte

	hasTags bool
	mm      string
	ml      []uint8
}

// readFastq returns the reads in the named FASTQ file keyed by read name.
// Modification tags are taken from the header of each record.
func readFastq(path string) (map[string]*read, error) {
	r, err := fastx.NewReader(bioseq.Unlimit, path, fastx.DefaultIDRegexp)
	if err != nil {
		return nil, errors.Wrapf(err, "caller: failed to open %q", path)
	}
	defer r.Close()

	reads := make(map[string]*read)
	for {
		rec, err := r.Read()
		if err != nil {
			if err != io.EOF {
				return nil, errors.Wrapf(err, "caller: failed to read %q", path)
			}
			break
		}
		mm, ml, ok, err := modtag.FromHeader(string(rec.Name))
		if err != nil {
			return nil, errors.Wrapf(err, "caller: read %s", rec.ID)
		}
		reads[string(rec.ID)] = &read{
			seq:     bytes.ToUpper(rec.Seq.Seq),
			hasTags: ok,
			mm:      mm,
			ml:      ml,
		}
	}
	return reads, nil
}
