// elStrain: strain-level phasing of assembly graphs.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstrain/blob/master/LICENSE.txt>.

package gfa

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGFA = "H\tVN:Z:1.0\n" +
	"S\tu1\tACGTACGT\tdp:i:12\n" +
	"S\tu2\tTTTT\tdp:f:3.5\n" +
	"S\tu3\t*\n" +
	"L\tu1\t+\tu2\t-\t0M\tRC:i:7\n" +
	"L\tu2\t-\tu3\t+\t0M\n" +
	"L\tu3\t+\tu3\t+\t0M\n" +
	"P\tp1\tu1+,u2-\t0M\n"

func TestReadWrite(t *testing.T) {
	g, err := Read(strings.NewReader(testGFA))
	require.NoError(t, err)
	require.Len(t, g.Segments(), 3)
	u1, ok := g.Segment("u1")
	require.True(t, ok)
	assert.Equal(t, 12.0, u1.Depth)
	u2, _ := g.Segment("u2")
	assert.Equal(t, 3.5, u2.Depth)
	u3, _ := g.Segment("u3")
	assert.Empty(t, u3.Sequence)
	require.Len(t, g.Links(), 3)
	assert.Equal(t, 7, g.Links()[0].Weight)
	require.Len(t, g.Paths(), 1)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g))
	again, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Links(), again.Links())
	assert.Equal(t, g.Paths(), again.Paths())
	for _, s := range g.Segments() {
		other, ok := again.Segment(s.Name)
		require.True(t, ok)
		assert.Equal(t, s, other)
	}
}

func TestReadRejectsDanglingLink(t *testing.T) {
	_, err := Read(strings.NewReader("S\tu1\tA\nL\tu1\t+\tu9\t+\t0M\n"))
	assert.Error(t, err)
}

func newTestGraph(names ...string) *Graph {
	g := New()
	for _, name := range names {
		g.AddSegment(Segment{Name: name, Sequence: []byte("ACGT")})
	}
	return g
}

func TestLinksAndTips(t *testing.T) {
	g := newTestGraph("a", "b", "c")
	assert.True(t, g.AddLink(Link{From: "a", FromOrient: Forward, To: "b", ToOrient: Forward, Weight: 1}))
	assert.False(t, g.AddLink(Link{From: "b", FromOrient: Reverse, To: "a", ToOrient: Reverse}), "reverse complement is the same link")
	assert.False(t, g.AddLink(Link{From: "a", FromOrient: Forward, To: "x", ToOrient: Forward}))
	assert.True(t, g.AddLink(Link{From: "c", FromOrient: Reverse, To: "b", ToOrient: Reverse}))

	assert.Len(t, g.DovetailsR("a"), 1)
	assert.Empty(t, g.DovetailsL("a"))
	assert.Len(t, g.DovetailsL("b"), 1)
	assert.Len(t, g.DovetailsR("b"), 1)
	assert.Len(t, g.DovetailsL("c"), 1)
	assert.True(t, g.IsTip("a", Reverse))
	assert.False(t, g.IsTip("a", Forward))
	assert.True(t, g.IsTip("c", Forward))
	assert.False(t, g.IsTip("missing", Forward))

	assert.True(t, g.RemoveLink(Link{From: "b", FromOrient: Reverse, To: "a", ToOrient: Reverse}))
	assert.False(t, g.RemoveLink(Link{From: "a", FromOrient: Forward, To: "b", ToOrient: Forward}))
	assert.True(t, g.IsTip("a", Forward))

	g.AddPath(Path{Name: "p", Segments: []string{"c-", "b-"}})
	assert.True(t, g.RemoveSegment("b"))
	assert.False(t, g.RemoveSegment("b"))
	assert.Empty(t, g.Links())
	assert.Empty(t, g.Paths())
	assert.Len(t, g.Segments(), 2)
}

func TestCleanIsIdempotent(t *testing.T) {
	g, err := Read(strings.NewReader(testGFA))
	require.NoError(t, err)
	stats := g.Clean()
	assert.Equal(t, CleanStats{SelfLinks: 1, Paths: 1, Placeholders: 1}, stats)
	u3, _ := g.Segment("u3")
	assert.Equal(t, "A", string(u3.Sequence))

	var first, second bytes.Buffer
	require.NoError(t, Write(&first, g))
	assert.Equal(t, CleanStats{}, g.Clean())
	require.NoError(t, Write(&second, g))
	assert.Equal(t, first.String(), second.String())
}

func TestMergeLinearPaths(t *testing.T) {
	g := New()
	g.AddSegment(Segment{Name: "a", Sequence: []byte("AACC"), Depth: 10})
	g.AddSegment(Segment{Name: "b", Sequence: []byte("GGTT"), Depth: 20})
	g.AddSegment(Segment{Name: "c", Sequence: []byte("ACGT"), Depth: 0})
	for _, name := range []string{"d", "e", "f", "g"} {
		g.AddSegment(Segment{Name: name, Sequence: []byte("CCCC"), Depth: 1})
	}
	for _, l := range []Link{
		{From: "d", FromOrient: Forward, To: "a", ToOrient: Forward},
		{From: "d", FromOrient: Forward, To: "g", ToOrient: Forward},
		{From: "a", FromOrient: Forward, To: "b", ToOrient: Reverse},
		{From: "b", FromOrient: Reverse, To: "c", ToOrient: Forward},
		{From: "c", FromOrient: Forward, To: "e", ToOrient: Forward},
		{From: "f", FromOrient: Forward, To: "e", ToOrient: Forward},
	} {
		require.True(t, g.AddLink(l))
	}

	assert.Equal(t, 1, g.MergeLinearPaths())
	merged, ok := g.Segment("a_b_c")
	require.True(t, ok)
	assert.Equal(t, "AACCAACCACGT", string(merged.Sequence))
	assert.InDelta(t, 10.0, merged.Depth, 1e-9)
	_, ok = g.Segment("b")
	assert.False(t, ok)

	links := g.Links()
	assert.Contains(t, links, Link{From: "a_b_c", FromOrient: Forward, To: "e", ToOrient: Forward, Overlap: "0M"})
	assert.Contains(t, links, Link{From: "d", FromOrient: Forward, To: "a_b_c", ToOrient: Forward, Overlap: "0M"})
	assert.Len(t, links, 4)

	assert.Equal(t, 0, g.MergeLinearPaths())
}

func TestMergeLinearPathsOverlap(t *testing.T) {
	g := New()
	g.AddSegment(Segment{Name: "a", Sequence: []byte("AACC")})
	g.AddSegment(Segment{Name: "b", Sequence: []byte("CCGG")})
	g.AddLink(Link{From: "a", FromOrient: Forward, To: "b", ToOrient: Forward, Overlap: "2M"})
	assert.Equal(t, 1, g.MergeLinearPaths())
	merged, ok := g.Segment("a_b")
	require.True(t, ok)
	assert.Equal(t, "AACCGG", string(merged.Sequence))
	assert.Empty(t, g.Links())
}

func TestHopIndex(t *testing.T) {
	g := newTestGraph("a", "b", "c", "d")
	g.AddLink(Link{From: "a", FromOrient: Forward, To: "b", ToOrient: Forward})
	g.AddLink(Link{From: "c", FromOrient: Reverse, To: "b", ToOrient: Reverse})
	g.AddLink(Link{From: "c", FromOrient: Forward, To: "c", ToOrient: Forward})
	distances := g.HopIndex().From("a")
	n, ok := distances.PathNodes("c")
	require.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = distances.PathNodes("a")
	require.True(t, ok)
	assert.Equal(t, 1, n)
	_, ok = distances.PathNodes("d")
	assert.False(t, ok)
	_, ok = g.HopIndex().From("zz").PathNodes("a")
	assert.False(t, ok)
}

func TestReverseComplement(t *testing.T) {
	assert.Equal(t, "ACGTN", string(ReverseComplement([]byte("NACGT"))))
}
