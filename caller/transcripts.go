// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caller

import (
	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/bed"
	"github.com/biogo/biogo/seq"
	"github.com/biogo/store/interval"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"

	"github.com/kortschak/nanomd/site"
)

// Transcripts is a set of BED12 transcript models indexed by name
// and by genomic location.
type Transcripts struct {
	byName map[string]*bed.Bed12
	trees  map[string]*interval.IntTree
}

// ReadTranscripts returns the transcript models in the named BED12 file.
func ReadTranscripts(path string) (*Transcripts, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "caller: failed to open %q", path)
	}
	defer f.Close()

	br, err := bed.NewReader(f, 12)
	if err != nil {
		return nil, errors.Wrapf(err, "caller: failed to read %q", path)
	}
	t := &Transcripts{
		byName: make(map[string]*bed.Bed12),
		trees:  make(map[string]*interval.IntTree),
	}
	sc := featio.NewScanner(br)
	for id := uintptr(1); sc.Next(); id++ {
		f := sc.Feat().(*bed.Bed12)
		t.byName[f.FeatName] = f
		tree, ok := t.trees[f.Chrom]
		if !ok {
			tree = &interval.IntTree{}
			t.trees[f.Chrom] = tree
		}
		err = tree.Insert(bedInterval{Bed12: f, id: id}, true)
		if err != nil {
			return nil, errors.Wrapf(err, "caller: failed to index %q", f.FeatName)
		}
	}
	err = sc.Error()
	if err != nil {
		return nil, errors.Wrapf(err, "caller: error during BED read of %q", path)
	}
	for _, tree := range t.trees {
		tree.AdjustRanges()
	}
	return t, nil
}

// Place returns the placements of the zero-based position pos on the
// reference chrom onto transcripts. If chrom is the name of a transcript,
// the alignment is taken to be against the transcriptome and the position
// is returned unaltered. Otherwise pos is converted to an offset on each
// transcript on the given strand with an exon covering pos.
func (t *Transcripts) Place(chrom string, pos int, strand seq.Strand) []site.Placement {
	if t == nil {
		return nil
	}
	if _, ok := t.byName[chrom]; ok {
		return []site.Placement{{Transcript: chrom, Offset: pos}}
	}
	tree, ok := t.trees[chrom]
	if !ok {
		return nil
	}
	var p []site.Placement
	for _, h := range tree.Get(point(pos)) {
		f := h.(bedInterval).Bed12
		if f.FeatStrand != seq.None && strand != seq.None && f.FeatStrand != strand {
			continue
		}
		off, ok := transcriptOffset(f, pos)
		if !ok {
			continue
		}
		p = append(p, site.Placement{Transcript: f.FeatName, Offset: off})
	}
	return p
}

// transcriptOffset returns the offset of pos from the 5' end of the
// spliced transcript f. If pos falls outside the exons of f, ok
// is false.
func transcriptOffset(f *bed.Bed12, pos int) (off int, ok bool) {
	if pos < f.ChromStart || f.ChromEnd <= pos {
		return 0, false
	}
	sizes, starts := f.BlockSizes, f.BlockStarts
	if len(sizes) == 0 || len(sizes) != len(starts) {
		sizes = []int{f.ChromEnd - f.ChromStart}
		starts = []int{0}
	}

	var length int
	off = -1
	for i, size := range sizes {
		start := f.ChromStart + starts[i]
		if start <= pos && pos < start+size {
			off = length + pos - start
		}
		length += size
	}
	if off < 0 {
		return 0, false
	}
	if f.FeatStrand == seq.Minus {
		off = length - 1 - off
	}
	return off, true
}

type bedInterval struct {
	*bed.Bed12
	id uintptr
}

func (f bedInterval) ID() uintptr { return f.id }
func (f bedInterval) Range() interval.IntRange {
	return interval.IntRange{Start: f.ChromStart, End: f.ChromEnd}
}
func (f bedInterval) Overlap(b interval.IntRange) bool {
	// Half-open interval indexing.
	return f.ChromEnd > b.Start && f.ChromStart < b.End
}

// point is a single base interval query.
type point int

func (p point) Overlap(b interval.IntRange) bool {
	return b.End > int(p) && b.Start <= int(p)
}
