// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caller

import (
	"bufio"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
	bioseq "github.com/shenwei356/bio/seq"
)

// recordReader is satisfied by *sam.Reader and *bam.Reader.
type recordReader interface {
	Read() (*sam.Record, error)
}

// alignment is an open SAM or BAM file.
type alignment struct {
	f   *os.File
	bam *bam.Reader
	recordReader
}

// openAlignment opens the named SAM or BAM file. BAM input is
// identified by its gzip magic number.
func openAlignment(path string) (*alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "caller: failed to open %q", path)
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, errors.Wrapf(err, "caller: failed to read %q", path)
	}

	a := &alignment{f: f}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		a.bam, err = bam.NewReader(br, 0)
		a.recordReader = a.bam
	} else {
		a.recordReader, err = sam.NewReader(br)
	}
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "caller: failed to open alignment %q", path)
	}
	return a, nil
}

func (a *alignment) Close() error {
	if a.bam != nil {
		a.bam.Close()
	}
	return a.f.Close()
}

var (
	mmTag = sam.NewTag("MM")
	mlTag = sam.NewTag("ML")

	// Pre-standardisation tag names.
	mmTagOld = sam.NewTag("Mm")
	mlTagOld = sam.NewTag("Ml")
)

// recordTags returns the MM and ML tags held by r. The ok result is
// false if r has no MM tag.
func recordTags(r *sam.Record) (mm string, ml []uint8, ok bool) {
	aux := r.AuxFields.Get(mmTag)
	if aux == nil {
		aux = r.AuxFields.Get(mmTagOld)
	}
	if aux == nil {
		return "", nil, false
	}
	mm, ok = aux.Value().(string)
	if !ok {
		return "", nil, false
	}

	aux = r.AuxFields.Get(mlTag)
	if aux == nil {
		aux = r.AuxFields.Get(mlTagOld)
	}
	if aux != nil {
		switch v := aux.Value().(type) {
		case []uint8:
			ml = v
		case []int8:
			ml = make([]uint8, len(v))
			for i, p := range v {
				ml[i] = uint8(p)
			}
		}
	}
	return mm, ml, true
}

// clips returns the lengths of hard clipping at the start and end
// of the alignment.
func clips(r *sam.Record) (left, right int) {
	if len(r.Cigar) == 0 {
		return 0, 0
	}
	if co := r.Cigar[0]; co.Type() == sam.CigarHardClipped {
		left = co.Len()
	}
	if len(r.Cigar) > 1 {
		if co := r.Cigar[len(r.Cigar)-1]; co.Type() == sam.CigarHardClipped {
			right = co.Len()
		}
	}
	return left, right
}

// refPositions returns the reference position aligned to each base of
// the record's SEQ, or -1 for bases not aligned to a reference base.
func refPositions(r *sam.Record) []int {
	pos := make([]int, r.Seq.Length)
	for i := range pos {
		pos[i] = -1
	}
	ref := r.Pos
	var query int
	for _, co := range r.Cigar {
		consume := co.Type().Consumes()
		for i := 0; i < co.Len(); i++ {
			if consume.Query != 0 && consume.Reference != 0 && query < len(pos) {
				pos[query] = ref
			}
			query += consume.Query
			ref += consume.Reference
		}
	}
	return pos
}

// seqIndex returns the index into a record's SEQ of the base at offset in
// the read as sequenced. length is the full read length and leftClip is the
// length of hard clipping at the start of the alignment.
func seqIndex(offset, length, leftClip int, reverse bool) int {
	if reverse {
		offset = length - 1 - offset
	}
	return offset - leftClip
}

// revcomp returns the reverse complement of the nucleotide sequence s.
func revcomp(s []byte) ([]byte, error) {
	sq, err := bioseq.NewSeq(bioseq.DNAredundant, s)
	if err != nil {
		return nil, err
	}
	return sq.RevCom().Seq, nil
}
