// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package featdist calculates the positions of modification sites relative
// to the 5'UTR, CDS and 3'UTR features of the transcripts they lie on.
//
// Relative locations are scaled so that the 5'UTR spans [0,1), the CDS
// spans [1,2) and the 3'UTR spans [2,3). Absolute distances are given
// relative to the start and stop codons.
package featdist

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"gonum.org/v1/gonum/stat"

	"github.com/kortschak/nanomd/site"
)

// Region holds the feature lengths of a transcript.
type Region struct {
	Transcript string
	Gene       string

	UTR5, CDS, UTR3 int
}

// Len returns the total length of the transcript features.
func (r Region) Len() int { return r.UTR5 + r.CDS + r.UTR3 }

// Regions is a set of transcript regions keyed by transcript name.
type Regions map[string]Region

// ReadRegions returns the regions held in the named region sizes file.
func ReadRegions(path string) (Regions, error) {
	f, err := xopen.Ropen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "featdist: failed to open %q", path)
	}
	defer f.Close()
	regions, err := ParseRegions(f)
	if err != nil {
		return nil, errors.Wrapf(err, "featdist: %q", path)
	}
	return regions, nil
}

const (
	transcriptField = iota
	utr5Field
	cdsField
	utr3Field
	geneField
)

// ParseRegions parses region sizes from r. Each line holds a transcript
// name, the lengths of its 5'UTR, CDS and 3'UTR and an optional gene
// name. A header line, blank lines and lines starting with '#' are
// ignored.
func ParseRegions(r io.Reader) (Regions, error) {
	regions := make(Regions)
	sc := bufio.NewScanner(r)
	first := true
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < geneField {
			return nil, errors.Errorf("line %d: too few fields: %q", line, text)
		}
		if first {
			first = false
			if _, err := strconv.Atoi(fields[utr5Field]); err != nil {
				// Header.
				continue
			}
		}
		var lens [3]int
		for i, f := range fields[utr5Field : utr3Field+1] {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 {
				return nil, errors.Errorf("line %d: invalid region length %q", line, f)
			}
			lens[i] = n
		}
		reg := Region{
			Transcript: fields[transcriptField],
			Gene:       fields[transcriptField],
			UTR5:       lens[0],
			CDS:        lens[1],
			UTR3:       lens[2],
		}
		if len(fields) > geneField {
			reg.Gene = fields[geneField]
		}
		regions[reg.Transcript] = reg
	}
	return regions, sc.Err()
}

// Feature identifies the transcript feature a site lies in.
type Feature int

const (
	UTR5 Feature = iota
	CDS
	UTR3
)

func (f Feature) String() string {
	switch f {
	case UTR5:
		return "5'UTR"
	case CDS:
		return "CDS"
	case UTR3:
		return "3'UTR"
	default:
		return fmt.Sprintf("Feature(%d)", int(f))
	}
}

// Distance is the location of a site relative to the features
// of a transcript.
type Distance struct {
	Chrom      string
	Coord      int // One-based site coordinate.
	Gene       string
	Transcript string
	Feature    Feature

	// RelLocation is the scaled location of the site.
	RelLocation float64

	// UTR3Start and UTR5Start are the distances
	// from the stop and start codons.
	UTR3Start int
	UTR5Start int
}

// Locate returns the location of s relative to the features of the longest
// coding transcript it is placed on. If no placement is on a coding
// transcript in rs, ok is false.
func (rs Regions) Locate(s *site.Site) (d Distance, ok bool) {
	var (
		best   Region
		offset int
	)
	for _, p := range s.Placements {
		r, found := rs[p.Transcript]
		if !found || r.CDS <= 0 || p.Offset < 0 || p.Offset >= r.Len() {
			continue
		}
		if r.Len() > best.Len() {
			best = r
			offset = p.Offset
		}
	}
	if best.Len() == 0 {
		return Distance{}, false
	}

	d = Distance{
		Chrom:      s.Chrom,
		Coord:      s.Start + 1,
		Gene:       best.Gene,
		Transcript: best.Transcript,
		UTR5Start:  offset - best.UTR5,
		UTR3Start:  offset - (best.UTR5 + best.CDS),
	}
	switch {
	case offset < best.UTR5:
		d.Feature = UTR5
		d.RelLocation = float64(offset) / float64(best.UTR5)
	case offset < best.UTR5+best.CDS:
		d.Feature = CDS
		d.RelLocation = 1 + float64(offset-best.UTR5)/float64(best.CDS)
	default:
		d.Feature = UTR3
		d.RelLocation = 2 + float64(offset-best.UTR5-best.CDS)/float64(best.UTR3)
	}
	return d, true
}

// Header is the header line of distance files.
const Header = "chr\tcoord\tgene_name\trefseqID\trel_location\tutr3_st\tutr5_st"

// Summary holds summary statistics for a set of located sites.
type Summary struct {
	Sites  int // Sites read.
	Placed int // Sites located on a coding transcript.

	// Counts is the number of placed sites in each feature.
	Counts [3]int

	MeanRel   float64
	MedianRel float64
}

// Calculate writes the distances of the sites in the site BED file in
// relative to the transcripts described in the regions file to the
// distance file out.
func Calculate(in, regions, out string) (Summary, error) {
	rs, err := ReadRegions(regions)
	if err != nil {
		return Summary{}, err
	}
	f, err := site.Open(in)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "featdist: failed to open %q", in)
	}
	defer f.Close()
	w, err := xopen.Wopen(out)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "featdist: failed to create %q", out)
	}
	sum, err := Process(f, w, rs)
	if err != nil {
		w.Close()
		return sum, errors.Wrapf(err, "featdist: failed to process %q", in)
	}
	return sum, w.Close()
}

// Process reads site BED records from r and writes their distances
// relative to the transcripts in rs to w.
func Process(r io.Reader, w io.Writer, rs Regions) (Summary, error) {
	var (
		sum Summary
		rel []float64
	)
	bw := bufio.NewWriter(w)
	_, err := fmt.Fprintln(bw, Header)
	if err != nil {
		return sum, err
	}
	sr := site.NewReader(r)
	for {
		s, err := sr.Read()
		if err != nil {
			if err != io.EOF {
				return sum, err
			}
			break
		}
		sum.Sites++
		d, ok := rs.Locate(s)
		if !ok {
			continue
		}
		sum.Placed++
		sum.Counts[d.Feature]++
		rel = append(rel, d.RelLocation)
		_, err = fmt.Fprintf(bw, "%s\t%d\t%s\t%s\t%s\t%d\t%d\n",
			d.Chrom, d.Coord, d.Gene, d.Transcript,
			strconv.FormatFloat(d.RelLocation, 'f', 6, 64),
			d.UTR3Start, d.UTR5Start,
		)
		if err != nil {
			return sum, err
		}
	}
	if len(rel) != 0 {
		sort.Float64s(rel)
		sum.MeanRel = stat.Mean(rel, nil)
		sum.MedianRel = stat.Quantile(0.5, stat.Empirical, rel, nil)
	}
	return sum, bw.Flush()
}
