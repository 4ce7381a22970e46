// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caller

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/biogo/seq"
	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortschak/nanomd/site"
)

const (
	//          0123456789          9
	read1 = "CCCCACCCCC" + "CCCCCCCCCACCCCCCCCCC"
	qual1 = "IIIIIIIIIIIIIIIIIIIIIIIIIIIIII"
)

var samText = strings.Join([]string{
	"@HD\tVN:1.6\tSO:unsorted",
	"@SQ\tSN:chr1\tLN:100",
	"r1\t0\tchr1\t11\t60\t10M20N20M\t*\t0\t0\t" + read1 + "\t*\tMM:Z:A+a?,0,0\tML:B:C,255,100",
	"r2\t0\tchr1\t11\t60\t10M20N20M\t*\t0\t0\t" + read1 + "\t*",
	"r3\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\t*",
	"r4\t16\tchr1\t41\t60\t10M\t*\t0\t0\tCCCCCTCCCC\t*\tMM:Z:A+a?,0\tML:B:C,250",
	"r5\t0\tchr1\t1\t60\t4M\t*\t0\t0\tACGT\t*",
}, "\n") + "\n"

var fastqText = strings.Join([]string{
	"@r1 runid=abc",
	read1,
	"+",
	qual1,
	"@r2 runid=abc\tMM:Z:A+a?,0,0\tML:B:C,255,100",
	read1,
	"+",
	qual1,
}, "\n") + "\n"

var bedText = strings.Join([]string{
	"chr1\t10\t60\ttx1\t0\t+\t10\t60\t0,0,0\t2\t10,20\t0,30",
	"chr1\t40\t70\ttx2\t0\t-\t40\t70\t0,0,0\t1\t30\t0",
}, "\n") + "\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	c := Caller{
		Reads:       writeFile(t, dir, "reads.fq", fastqText),
		Alignment:   writeFile(t, dir, "reads.sam", samText),
		Transcripts: writeFile(t, dir, "tx.bed", bedText),
		MinProb:     0.9,
		MinReads:    1,
	}
	out := filepath.Join(dir, "sample.bed")
	stats, err := c.Run(out)
	require.NoError(t, err)

	want := "chr1\t14\t15\tm6A\t1000\t+\ta\t2\t2\t1.0000\t0.9980\ttx1:4\n" +
		"chr1\t45\t46\tm6A\t1000\t-\ta\t1\t1\t1.0000\t0.9785\ttx2:24\n"
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	assert.Equal(t, Stats{
		Records: 5,
		Used:    3,
		NoTags:  1,
		Calls:   5,
		Sites:   2,
	}, stats)
}

func TestRunMinReads(t *testing.T) {
	dir := t.TempDir()
	c := Caller{
		Reads:     writeFile(t, dir, "reads.fq", fastqText),
		Alignment: writeFile(t, dir, "reads.sam", samText),
		MinProb:   0.3,
		MinReads:  2,
	}
	out := filepath.Join(dir, "sample.bed")
	stats, err := c.Run(out)
	require.NoError(t, err)

	// With a low probability cutoff the second A in r1 and r2
	// is also called, but r4 alone does not reach two reads.
	want := "chr1\t14\t15\tm6A\t1000\t+\ta\t2\t2\t1.0000\t0.9980\t.\n" +
		"chr1\t49\t50\tm6A\t1000\t+\ta\t2\t2\t1.0000\t0.3926\t.\n"
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
	assert.Equal(t, 2, stats.Unplaced)
}

func TestRefPositions(t *testing.T) {
	ref, err := sam.NewReference("chr1", "", "", 100, nil, nil)
	require.NoError(t, err)
	// Records may only refer to references held by a header.
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	r, err := sam.NewRecord("r", ref, nil, 10, -1, 0, 60,
		[]sam.CigarOp{
			sam.NewCigarOp(sam.CigarHardClipped, 3),
			sam.NewCigarOp(sam.CigarSoftClipped, 1),
			sam.NewCigarOp(sam.CigarMatch, 2),
			sam.NewCigarOp(sam.CigarInsertion, 1),
			sam.NewCigarOp(sam.CigarDeletion, 2),
			sam.NewCigarOp(sam.CigarMatch, 1),
		},
		[]byte("ACGTA"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{-1, 10, 11, -1, 14}, refPositions(r))

	left, right := clips(r)
	assert.Equal(t, 3, left)
	assert.Equal(t, 0, right)
}

func TestSeqIndex(t *testing.T) {
	// Forward read with three hard clipped bases.
	assert.Equal(t, 2, seqIndex(5, 20, 3, false))
	// Reverse read: offset 0 of the sequenced read is
	// the last base of the full stored alignment.
	assert.Equal(t, 19, seqIndex(0, 20, 0, true))
	assert.Equal(t, 16, seqIndex(0, 20, 3, true))
}

func TestPlace(t *testing.T) {
	dir := t.TempDir()
	tx, err := ReadTranscripts(writeFile(t, dir, "tx.bed", bedText))
	require.NoError(t, err)

	tests := []struct {
		chrom  string
		pos    int
		strand seq.Strand
		want   []site.Placement
	}{
		{chrom: "chr1", pos: 10, strand: seq.Plus, want: []site.Placement{{Transcript: "tx1", Offset: 0}}},
		{chrom: "chr1", pos: 19, strand: seq.Plus, want: []site.Placement{{Transcript: "tx1", Offset: 9}}},
		{chrom: "chr1", pos: 25, strand: seq.Plus}, // Intronic.
		{chrom: "chr1", pos: 40, strand: seq.Plus, want: []site.Placement{{Transcript: "tx1", Offset: 10}}},
		{chrom: "chr1", pos: 59, strand: seq.Plus, want: []site.Placement{{Transcript: "tx1", Offset: 29}}},
		{chrom: "chr1", pos: 60, strand: seq.Plus},
		{chrom: "chr1", pos: 69, strand: seq.Minus, want: []site.Placement{{Transcript: "tx2", Offset: 0}}},
		{chrom: "chr2", pos: 15, strand: seq.Plus},
		// Transcriptome coordinates.
		{chrom: "tx2", pos: 7, strand: seq.Plus, want: []site.Placement{{Transcript: "tx2", Offset: 7}}},
	}
	for _, test := range tests {
		got := tx.Place(test.chrom, test.pos, test.strand)
		assert.Equal(t, test.want, got, "%s:%d%v", test.chrom, test.pos, test.strand)
	}
}

func TestRevcomp(t *testing.T) {
	got, err := revcomp([]byte("CCCCCTCCCC"))
	require.NoError(t, err)
	assert.Equal(t, []byte("GGGGAGGGGG"), got)

	_, err = revcomp([]byte("AC1T"))
	assert.Error(t, err)
}
