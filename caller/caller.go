// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package caller calls modification sites from aligned nanopore reads
// carrying base modification tags.
//
// Per-read modification probabilities are taken from the MM and ML tags
// written by the basecaller, either held by the alignment records or in
// the headers of the FASTQ records that were aligned. Calls are projected
// onto the reference through the alignment and aggregated per reference
// position, strand and modification code.
package caller

import (
	"io"
	"sort"

	"github.com/biogo/biogo/seq"
	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"

	"github.com/kortschak/nanomd/modtag"
	"github.com/kortschak/nanomd/site"
)

// Caller holds parameters for modification site calling.
type Caller struct {
	// Reads is the FASTQ file of sequenced reads. It may be
	// empty if the alignment records carry MM and ML tags.
	Reads string

	// Alignment is the SAM or BAM file of aligned reads.
	Alignment string

	// Transcripts is the BED12 file of transcript models.
	// It may be empty, in which case sites are not placed
	// on transcripts.
	Transcripts string

	// MinProb is the minimum probability for a
	// per-read call to be counted as modified.
	MinProb float64

	// MinReads is the minimum number of modified
	// reads for a site to be reported.
	MinReads int
}

// Stats holds counts of the work done by a call to Run.
type Stats struct {
	Records   int // Alignment records read.
	Used      int // Primary alignments with modification tags.
	NoTags    int // Primary alignments without modification tags.
	Unusable  int // Primary alignments with tags that could not be resolved.
	Calls     int // Per-read calls projected onto the reference.
	Sites     int // Sites written.
	Unplaced  int // Sites written without a transcript placement.
	Truncated int // Reads skipped because their full sequence is unavailable.
}

// Run calls modification sites and writes them to the site BED file out.
func (c Caller) Run(out string) (Stats, error) {
	var stats Stats

	var reads map[string]*read
	if c.Reads != "" {
		var err error
		reads, err = readFastq(c.Reads)
		if err != nil {
			return stats, err
		}
	}

	var tx *Transcripts
	if c.Transcripts != "" {
		var err error
		tx, err = ReadTranscripts(c.Transcripts)
		if err != nil {
			return stats, err
		}
	}

	a, err := openAlignment(c.Alignment)
	if err != nil {
		return stats, err
	}
	defer a.Close()

	p := make(pileup)
	for {
		r, err := a.Read()
		if err != nil {
			if err != io.EOF {
				return stats, errors.Wrapf(err, "caller: failed to read alignment %q", c.Alignment)
			}
			break
		}
		stats.Records++
		if r.Flags&(sam.Unmapped|sam.Secondary|sam.Supplementary) != 0 || r.Ref == nil {
			continue
		}
		calls, ok, err := c.readCalls(r, reads[r.Name], &stats)
		if err != nil {
			return stats, errors.Wrapf(err, "caller: read %s", r.Name)
		}
		if !ok {
			continue
		}
		stats.Used++
		stats.Calls += p.add(r, calls, c.MinProb)
	}

	f, err := xopen.Wopen(out)
	if err != nil {
		return stats, errors.Wrapf(err, "caller: failed to create %q", out)
	}
	w := site.NewWriter(f)
	for _, s := range p.sites(c.MinReads) {
		s.Placements = tx.Place(s.Chrom, s.Start, s.Strand)
		if len(s.Placements) == 0 {
			stats.Unplaced++
		}
		err = w.Write(s)
		if err != nil {
			f.Close()
			return stats, errors.Wrapf(err, "caller: failed to write %q", out)
		}
		stats.Sites++
	}
	err = w.Flush()
	if err != nil {
		f.Close()
		return stats, errors.Wrapf(err, "caller: failed to write %q", out)
	}
	return stats, f.Close()
}

// readCalls returns the modification calls for the alignment record r with
// the offsets converted to indexes into the record's SEQ. If the read has no
// modification tags or its sequence cannot be reconstructed, ok is false.
func (c Caller) readCalls(r *sam.Record, rd *read, stats *Stats) (calls []modtag.Call, ok bool, err error) {
	mm, ml, ok := recordTags(r)
	if !ok && rd != nil && rd.hasTags {
		mm, ml, ok = rd.mm, rd.ml, true
	}
	if !ok {
		stats.NoTags++
		return nil, false, nil
	}

	reverse := r.Flags&sam.Reverse != 0
	left, right := clips(r)
	length := left + r.Seq.Length + right

	// Obtain the read in the orientation it was sequenced.
	var orig []byte
	switch {
	case rd != nil && len(rd.seq) == length:
		orig = rd.seq
	case left == 0 && right == 0 && r.Seq.Length != 0:
		orig = r.Seq.Expand()
		if reverse {
			orig, err = revcomp(orig)
			if err != nil {
				stats.Unusable++
				return nil, false, nil
			}
		}
	default:
		stats.Truncated++
		return nil, false, nil
	}

	entries, err := modtag.ParseMM(mm)
	if err != nil {
		return nil, false, err
	}
	calls, err = modtag.Resolve(orig, entries, ml)
	if err != nil {
		stats.Unusable++
		return nil, false, nil
	}
	for i := range calls {
		calls[i].Offset = seqIndex(calls[i].Offset, length, left, reverse)
	}
	return calls, true, nil
}

type siteKey struct {
	chrom  string
	pos    int
	strand seq.Strand
	code   modtag.Code
}

type siteCounts struct {
	modified int
	coverage int
	probSum  float64
}

// pileup aggregates per-read calls by reference position.
type pileup map[siteKey]*siteCounts

// add adds the calls for the record r to the pileup, returning the number
// of calls that were aligned to a reference base.
func (p pileup) add(r *sam.Record, calls []modtag.Call, minProb float64) int {
	strand := seq.Plus
	if r.Flags&sam.Reverse != 0 {
		strand = seq.Minus
	}
	pos := refPositions(r)
	var n int
	for _, c := range calls {
		if c.Offset < 0 || len(pos) <= c.Offset || pos[c.Offset] < 0 {
			continue
		}
		k := siteKey{chrom: r.Ref.Name(), pos: pos[c.Offset], strand: strand, code: c.Code}
		sc, ok := p[k]
		if !ok {
			sc = &siteCounts{}
			p[k] = sc
		}
		sc.coverage++
		sc.probSum += c.Prob
		if c.Prob >= minProb {
			sc.modified++
		}
		n++
	}
	return n
}

// sites returns the sites in the pileup with at least minReads modified
// reads, sorted by chromosome, position, strand and code.
func (p pileup) sites(minReads int) []*site.Site {
	if minReads < 1 {
		minReads = 1
	}
	var sites []*site.Site
	for k, c := range p {
		if c.modified < minReads {
			continue
		}
		sites = append(sites, &site.Site{
			Chrom:    k.chrom,
			Start:    k.pos,
			End:      k.pos + 1,
			Name:     k.code.Name(),
			Strand:   k.strand,
			Code:     k.code,
			Modified: c.modified,
			Coverage: c.coverage,
			MeanProb: c.probSum / float64(c.coverage),
		})
	}
	sort.Slice(sites, func(i, j int) bool {
		a, b := sites[i], sites[j]
		switch {
		case a.Chrom != b.Chrom:
			return a.Chrom < b.Chrom
		case a.Start != b.Start:
			return a.Start < b.Start
		case a.Strand != b.Strand:
			return a.Strand > b.Strand
		default:
			return a.Code < b.Code
		}
	})
	return sites
}
