// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package site provides the modification site BED format.
//
// Site BED files are BED6 with six additional fields:
//
//  chrom start end type score strand code modified coverage ratio meanProb transcripts
//
// Coordinates are zero-based half-open. The score is the modification
// ratio scaled to [0,1000] and transcripts is a comma separated list of
// transcript:offset placements, or "." if the site is not placed on a
// transcript.
package site

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/biogo/biogo/seq"
	"github.com/pkg/errors"

	"github.com/kortschak/nanomd/modtag"
)

const (
	chromField = iota
	startField
	endField
	nameField
	scoreField
	strandField
	codeField
	modifiedField
	coverageField
	ratioField
	meanProbField
	transcriptsField

	numFields
)

// Placement is the position of a site on a transcript.
type Placement struct {
	Transcript string
	Offset     int // Zero-based offset from the transcript 5' end.
}

// Site is an aggregated modification site.
type Site struct {
	Chrom      string
	Start, End int
	Name       string
	Strand     seq.Strand
	Code       modtag.Code

	// Modified is the number of reads called as
	// modified and Coverage is the number of reads
	// with a call at the site.
	Modified int
	Coverage int
	MeanProb float64

	Placements []Placement
}

// Ratio returns the fraction of covering reads called as modified.
func (s *Site) Ratio() float64 {
	if s.Coverage == 0 {
		return 0
	}
	return float64(s.Modified) / float64(s.Coverage)
}

// Score returns the BED score for the site.
func (s *Site) Score() int {
	return int(math.Round(s.Ratio() * 1000))
}

// Writer writes site BED records.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a new Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes s to the underlying writer.
func (w *Writer) Write(s *Site) error {
	_, err := fmt.Fprintf(w.w, "%s\t%d\t%d\t%s\t%d\t%s\t%s\t%d\t%d\t%.4f\t%.4f\t%s\n",
		s.Chrom, s.Start, s.End, s.Name, s.Score(), strandString(s.Strand),
		s.Code, s.Modified, s.Coverage, s.Ratio(), s.MeanProb,
		placementString(s.Placements),
	)
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader reads site BED records.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader returns a new Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read returns the next site in the stream. At the end of
// the stream Read returns io.EOF.
func (r *Reader) Read() (*Site, error) {
	for {
		line, err := r.r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, err
		}
		r.line++
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") {
			continue
		}
		s, err := parse(line)
		if err != nil {
			return nil, errors.Wrapf(err, "site: line %d", r.line)
		}
		return s, nil
	}
}

func parse(line string) (s *Site, err error) {
	fields := strings.Split(line, "\t")
	if len(fields) != numFields {
		return nil, errors.Errorf("wrong number of fields: want %d, got %d", numFields, len(fields))
	}
	s = &Site{
		Chrom: fields[chromField],
		Name:  fields[nameField],
		Code:  modtag.Code(fields[codeField]),
	}
	for _, f := range []struct {
		dst   *int
		field int
		name  string
	}{
		{dst: &s.Start, field: startField, name: "start"},
		{dst: &s.End, field: endField, name: "end"},
		{dst: &s.Modified, field: modifiedField, name: "modified count"},
		{dst: &s.Coverage, field: coverageField, name: "coverage"},
	} {
		*f.dst, err = strconv.Atoi(fields[f.field])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", f.name)
		}
	}
	s.MeanProb, err = strconv.ParseFloat(fields[meanProbField], 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mean probability")
	}
	s.Strand, err = parseStrand(fields[strandField])
	if err != nil {
		return nil, err
	}
	s.Placements, err = parsePlacements(fields[transcriptsField])
	if err != nil {
		return nil, err
	}
	return s, nil
}

func strandString(s seq.Strand) string {
	switch s {
	case seq.Plus:
		return "+"
	case seq.Minus:
		return "-"
	default:
		return "."
	}
}

func parseStrand(s string) (seq.Strand, error) {
	switch s {
	case "+":
		return seq.Plus, nil
	case "-":
		return seq.Minus, nil
	case ".":
		return seq.None, nil
	default:
		return 0, errors.Errorf("invalid strand: %q", s)
	}
}

func placementString(p []Placement) string {
	if len(p) == 0 {
		return "."
	}
	var buf strings.Builder
	for i, t := range p {
		if i != 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%s:%d", t.Transcript, t.Offset)
	}
	return buf.String()
}

func parsePlacements(s string) ([]Placement, error) {
	if s == "." || s == "" {
		return nil, nil
	}
	var p []Placement
	for _, t := range strings.Split(s, ",") {
		i := strings.LastIndexByte(t, ':')
		if i < 0 {
			return nil, errors.Errorf("invalid transcript placement: %q", t)
		}
		off, err := strconv.Atoi(t[i+1:])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid transcript offset: %q", t)
		}
		p = append(p, Placement{Transcript: t[:i], Offset: off})
	}
	return p, nil
}
