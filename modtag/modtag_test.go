// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package modtag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMM(t *testing.T) {
	got, err := ParseMM("A+a?,0,2;C+mh.,1;T+17802,3;A-17596;")
	require.NoError(t, err)
	want := []Entry{
		{Base: 'A', Strand: '+', Codes: []Code{M6A}, Mode: '?', Skips: []int{0, 2}},
		{Base: 'C', Strand: '+', Codes: []Code{"m", "h"}, Mode: '.', Skips: []int{1}},
		{Base: 'T', Strand: '+', Codes: []Code{Pseudouridine}, Skips: []int{3}},
		{Base: 'A', Strand: '-', Codes: []Code{Inosine}},
	}
	assert.Equal(t, want, got)
}

func TestParseMMErrors(t *testing.T) {
	for _, mm := range []string{
		"A+",
		"X+a,0",
		"A*a,0",
		"A+?,0",
		"A+a,-1",
		"A+a,x",
		"A+a1,0",
	} {
		_, err := ParseMM(mm)
		assert.Error(t, err, "expected error for %q", mm)
	}
}

func TestResolve(t *testing.T) {
	//                0123456789
	seq := []byte("ACCAGUACAT")
	entries, err := ParseMM("A+a?,1,0;C+mh,2;U+17802,0")
	require.NoError(t, err)
	ml := []uint8{
		255, 0, // a at the second and third A.
		10, 200, // m and h at the third C.
		127, // psi at the first U/T.
	}
	got, err := Resolve(seq, entries, ml)
	require.NoError(t, err)
	want := []Call{
		{Offset: 3, Base: 'A', Code: M6A, Prob: Prob(255)},
		{Offset: 6, Base: 'A', Code: M6A, Prob: Prob(0)},
		{Offset: 7, Base: 'C', Code: "m", Prob: Prob(10)},
		{Offset: 7, Base: 'C', Code: "h", Prob: Prob(200)},
		{Offset: 5, Base: 'U', Code: Pseudouridine, Prob: Prob(127)},
	}
	assert.Equal(t, want, got)
}

func TestResolveOppositeStrandConsumesML(t *testing.T) {
	seq := []byte("AAAA")
	entries, err := ParseMM("A-a,0,0;A+a,3")
	require.NoError(t, err)
	got, err := Resolve(seq, entries, []uint8{1, 2, 250})
	require.NoError(t, err)
	assert.Equal(t, []Call{{Offset: 3, Base: 'A', Code: M6A, Prob: Prob(250)}}, got)
}

func TestResolveErrors(t *testing.T) {
	entries, err := ParseMM("A+a,0,5")
	require.NoError(t, err)

	_, err = Resolve([]byte("AAA"), entries, []uint8{1, 2})
	assert.Error(t, err, "expected error for skips past end of read")

	_, err = Resolve([]byte("AAAAAAAAA"), entries, []uint8{1})
	assert.Error(t, err, "expected error for short ML")

	_, err = Resolve([]byte("AAAAAAAAA"), entries, []uint8{1, 2, 3})
	assert.Error(t, err, "expected error for long ML")
}

func TestFromHeader(t *testing.T) {
	mm, ml, ok, err := FromHeader("read1 runid=x\tMM:Z:A+a?,0,1;\tML:B:C,12,250")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A+a?,0,1;", mm)
	assert.Equal(t, []uint8{12, 250}, ml)

	_, _, ok, err = FromHeader("read2 runid=x")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = FromHeader("read3 MM:Z:A+a,0 ML:B:C,300")
	assert.Error(t, err)
}

func TestCodeName(t *testing.T) {
	assert.Equal(t, "m6A", M6A.Name())
	assert.Equal(t, "psi", Pseudouridine.Name())
	assert.Equal(t, "AtoI", Inosine.Name())
	assert.Equal(t, "h", Code("h").Name())
	assert.False(t, Code("h").Known())
	for _, c := range []Code{M6A, M5C, Pseudouridine, Inosine} {
		assert.Contains(t, Types, c.Name())
	}
}
