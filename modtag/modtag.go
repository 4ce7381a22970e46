// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package modtag provides parsing of the SAM MM and ML base modification
// tags and resolution of modification calls against a read sequence.
package modtag

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Code is a base modification code. It is either a single letter
// code, or a ChEBI identifier.
type Code string

const (
	M6A           Code = "a"     // N6-methyladenosine
	M5C           Code = "m"     // 5-methylcytosine
	Pseudouridine Code = "17802" // ChEBI pseudouridine
	Inosine       Code = "17596" // ChEBI inosine, A-to-I editing
)

// Types is the ordered list of modification type names that are
// split, measured and plotted.
var Types = []string{"m6A", "m5C", "psi", "AtoI"}

var names = map[Code]string{
	M6A:           "m6A",
	M5C:           "m5C",
	Pseudouridine: "psi",
	Inosine:       "AtoI",
}

// Name returns the modification type name for c. Codes without a
// known type are returned unaltered.
func (c Code) Name() string {
	if n, ok := names[c]; ok {
		return n
	}
	return string(c)
}

// Known returns whether c has a modification type name in Types.
func (c Code) Known() bool {
	_, ok := names[c]
	return ok
}

// Entry is a single semicolon-delimited MM tag entry.
type Entry struct {
	Base   byte // Canonical base, upper case.
	Strand byte // '+' or '-'.
	Codes  []Code
	Mode   byte // 0, '?' or '.'.
	Skips  []int
}

// ParseMM parses the value of an MM tag.
func ParseMM(mm string) ([]Entry, error) {
	var entries []Entry
	for _, e := range strings.Split(mm, ";") {
		if e == "" {
			continue
		}
		fields := strings.Split(e, ",")
		head := fields[0]
		if len(head) < 3 {
			return nil, errors.Errorf("modtag: short MM entry: %q", e)
		}
		base := upper(head[0])
		if strings.IndexByte("ACGTUN", base) < 0 {
			return nil, errors.Errorf("modtag: invalid canonical base in MM entry: %q", e)
		}
		strand := head[1]
		if strand != '+' && strand != '-' {
			return nil, errors.Errorf("modtag: invalid strand in MM entry: %q", e)
		}
		codes := head[2:]
		var mode byte
		if last := codes[len(codes)-1]; last == '?' || last == '.' {
			mode = last
			codes = codes[:len(codes)-1]
		}
		if codes == "" {
			return nil, errors.Errorf("modtag: no modification code in MM entry: %q", e)
		}

		ent := Entry{Base: base, Strand: strand, Mode: mode}
		if isDigits(codes) {
			ent.Codes = []Code{Code(codes)}
		} else {
			for i := 0; i < len(codes); i++ {
				c := codes[i]
				if !isLetter(c) {
					return nil, errors.Errorf("modtag: invalid modification code in MM entry: %q", e)
				}
				ent.Codes = append(ent.Codes, Code(codes[i:i+1]))
			}
		}

		for _, f := range fields[1:] {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 {
				return nil, errors.Errorf("modtag: invalid skip count %q in MM entry: %q", f, e)
			}
			ent.Skips = append(ent.Skips, n)
		}
		entries = append(entries, ent)
	}
	return entries, nil
}

// Call is a single per-read modification call.
type Call struct {
	// Offset is the position of the call in
	// the read as it was sequenced.
	Offset int
	Base   byte
	Code   Code
	Prob   float64
}

// Prob returns the probability represented by an ML value.
func Prob(v uint8) float64 {
	return (float64(v) + 0.5) / 256
}

// Resolve returns the modification calls described by the MM entries and
// ML values for the read sequence seq, in the orientation it was sequenced.
// Entries describing the opposite strand are skipped, though their ML
// values are accounted for.
func Resolve(seq []byte, entries []Entry, ml []uint8) ([]Call, error) {
	var (
		calls []Call
		next  int
	)
	for _, e := range entries {
		n := len(e.Codes) * len(e.Skips)
		if next+n > len(ml) {
			return nil, errors.Errorf("modtag: too few ML values: need at least %d, have %d", next+n, len(ml))
		}
		probs := ml[next : next+n]
		next += n
		if e.Strand != '+' {
			continue
		}

		i := 0
		for j, skip := range e.Skips {
			// Find the (skip+1)th occurrence of the base from i.
			for ; i < len(seq); i++ {
				if !matches(e.Base, seq[i]) {
					continue
				}
				if skip == 0 {
					break
				}
				skip--
			}
			if i == len(seq) {
				return nil, errors.Errorf("modtag: MM skip counts for %c exceed read length %d", e.Base, len(seq))
			}
			for k, c := range e.Codes {
				calls = append(calls, Call{
					Offset: i,
					Base:   e.Base,
					Code:   c,
					Prob:   Prob(probs[j*len(e.Codes)+k]),
				})
			}
			i++
		}
	}
	if next != len(ml) {
		return nil, errors.Errorf("modtag: ML length mismatch: MM describes %d values, have %d", next, len(ml))
	}
	return calls, nil
}

// FromHeader returns the MM and ML tag values held in a FASTQ header line
// in the form written by basecallers that copy SAM tags into the header.
// The ok result is false if no MM tag is present.
func FromHeader(header string) (mm string, ml []uint8, ok bool, err error) {
	for _, f := range strings.Fields(header) {
		switch {
		case strings.HasPrefix(f, "MM:Z:"), strings.HasPrefix(f, "Mm:Z:"):
			mm = f[len("MM:Z:"):]
			ok = true
		case strings.HasPrefix(f, "ML:B:C"), strings.HasPrefix(f, "Ml:B:C"):
			vals := strings.TrimPrefix(f[len("ML:B:C"):], ",")
			if vals == "" {
				continue
			}
			for _, v := range strings.Split(vals, ",") {
				n, err := strconv.ParseUint(v, 10, 8)
				if err != nil {
					return "", nil, false, errors.Wrapf(err, "modtag: invalid ML value in header")
				}
				ml = append(ml, uint8(n))
			}
		}
	}
	return mm, ml, ok, nil
}

func matches(base, b byte) bool {
	b = upper(b)
	switch base {
	case 'N':
		return true
	case 'T', 'U':
		return b == 'T' || b == 'U'
	default:
		return b == base
	}
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func isLetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || '9' < s[i] {
			return false
		}
	}
	return s != ""
}
