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

package transform

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/config"
	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/reads"
)

type fakeLoader map[string]*reads.Set

func (l fakeLoader) Load(unitig string) (*reads.Set, error) {
	if set, ok := l[unitig]; ok {
		return set, nil
	}
	return reads.NewSet(unitig, 0, nil, nil), nil
}

// referenceConsensus returns the reference sequence under the reads
// of a cluster.
type referenceConsensus struct {
	refs   map[string][]byte
	loader fakeLoader
	calls  int
}

func (c *referenceConsensus) Get(_ context.Context, key consensus.Key, members []string) *consensus.Record {
	c.calls++
	set := c.loader[key.Unitig]
	record := &consensus.Record{Start: -1}
	for _, name := range members {
		read, ok := set.Lookup(name)
		if !ok {
			continue
		}
		if record.Start < 0 || read.Start < record.Start {
			record.Start = read.Start
		}
		record.End = max(record.End, read.End)
	}
	record.Sequence = c.refs[key.Unitig][record.Start:record.End]
	return record
}

type sameDistance struct{}

func (sameDistance) Distance(context.Context, string, clustering.Members, clustering.Members) (int, bool) {
	return 0, true
}

func testParams() config.Params {
	params := config.Default()
	params.StartEndGap = 50
	return params
}

func readsOf(prefix string, n, start, end int, clips ...reads.ClipLink) []reads.Read {
	var result []reads.Read
	for i := 0; i < n; i++ {
		result = append(result, reads.Read{
			Name:       fmt.Sprintf("%v%v", prefix, i),
			Start:      start,
			End:        end,
			RightClips: clips,
		})
	}
	return result
}

func writeTable(t *testing.T, dir string, set *reads.Set, assignment clustering.Assignment) {
	t.Helper()
	require.NoError(t, clustering.WriteTable(dir, clustering.Table{
		Unitig:     set.Unitig,
		Assignment: assignment,
		Stats:      clustering.ComputeStats(set, assignment),
	}))
}

func assign(id int, rs []reads.Read) clustering.Assignment {
	assignment := make(clustering.Assignment)
	for _, read := range rs {
		assignment[read.Name] = id
	}
	return assignment
}

func TestSingleCluster(t *testing.T) {
	dir := t.TempDir()
	seq1 := []byte(strings.Repeat("ACGTTGCA", 125))
	seq2 := []byte(strings.Repeat("GATC", 200))
	g := gfa.New()
	g.AddSegment(gfa.Segment{Name: "u1", Sequence: seq1})
	g.AddSegment(gfa.Segment{Name: "u2", Sequence: seq2})
	g.AddLink(gfa.Link{From: "u1", FromOrient: gfa.Forward, To: "u2", ToOrient: gfa.Forward})

	reads1 := readsOf("r", 4, 0, 1000, reads.ClipLink{Unitig: "u2", Orientation: reads.Forward})
	reads2 := readsOf("r", 4, 0, 800)
	loader := fakeLoader{
		"u1": reads.NewSet("u1", 1000, nil, reads1),
		"u2": reads.NewSet("u2", 800, nil, reads2),
	}
	writeTable(t, dir, loader["u1"], assign(3, reads1))
	writeTable(t, dir, loader["u2"], assign(5, reads2))

	cons := &referenceConsensus{refs: map[string][]byte{"u1": seq1, "u2": seq2}, loader: loader}
	var stats bytes.Buffer
	engine := &Engine{
		Graph:       g,
		Consensus:   cons,
		Distancer:   sameDistance{},
		Loader:      loader,
		ClustersDir: dir,
		Params:      testParams(),
		StatsOut:    &stats,
	}
	require.NoError(t, engine.Run(context.Background(), []string{"u1", "u2"}))

	_, ok := g.Segment("u1")
	assert.False(t, ok)
	child, ok := g.Segment("u1_3")
	require.True(t, ok)
	assert.Equal(t, seq1, child.Sequence)
	assert.InDelta(t, 4.0, child.Depth, 1e-9)
	_, ok = g.Segment("u2_5")
	assert.True(t, ok)
	assert.Zero(t, cons.calls)

	links := g.Links()
	require.Len(t, links, 1)
	assert.Equal(t, gfa.Link{From: "u1_3", FromOrient: "+", To: "u2_5", ToOrient: "+", Overlap: "0M", Weight: 4}, links[0])
	assert.Equal(t, Cleaned, engine.State("u1"))
	assert.Equal(t, "Edge\tFull Clusters\tFull Paths Clusters\tOther Clusters\nu1\t0\t0\t1\nu2\t0\t0\t1\n", stats.String())
}

func TestTwoClusterPath(t *testing.T) {
	dir := t.TempDir()
	seq := []byte(strings.Repeat("ACGTTGCA", 125))
	g := gfa.New()
	g.AddSegment(gfa.Segment{Name: "u0", Sequence: []byte("AAAA")})
	g.AddSegment(gfa.Segment{Name: "u1", Sequence: seq})
	g.AddLink(gfa.Link{From: "u0", FromOrient: gfa.Forward, To: "u1", ToOrient: gfa.Forward})

	first := readsOf("a", 5, 0, 600)
	second := readsOf("b", 5, 400, 1000)
	loader := fakeLoader{"u1": reads.NewSet("u1", 1000, nil, append(first, second...))}
	assignment := assign(1, first)
	for name, id := range assign(2, second) {
		assignment[name] = id
	}
	writeTable(t, dir, loader["u1"], assignment)

	var stats bytes.Buffer
	engine := &Engine{
		Graph:       g,
		Consensus:   &referenceConsensus{refs: map[string][]byte{"u1": seq}, loader: loader},
		Distancer:   sameDistance{},
		Loader:      loader,
		ClustersDir: dir,
		Params:      testParams(),
		StatsOut:    &stats,
	}
	require.NoError(t, engine.Run(context.Background(), []string{"u0", "u1"}))

	_, ok := g.Segment("u1")
	assert.False(t, ok)
	left, ok := g.Segment("u1_1")
	require.True(t, ok)
	right, ok := g.Segment("u1_2")
	require.True(t, ok)
	assert.Equal(t, seq[:501], left.Sequence)
	assert.Equal(t, seq[500:], right.Sequence)
	assert.InDelta(t, 5.0, left.Depth, 1e-9)

	assert.Equal(t, []gfa.Link{
		{From: "u0", FromOrient: "+", To: "u1_1", ToOrient: "+", Overlap: "0M", Weight: parentalWeight},
		{From: "u1_1", FromOrient: "+", To: "u1_2", ToOrient: "+", Overlap: "0M", Weight: 1},
	}, g.Links())
	assert.Equal(t, NoClusters, engine.State("u0"))
	assert.Equal(t, Cleaned, engine.State("u1"))
	assert.Contains(t, stats.String(), "u1\t0\t2\t0\n")
}

func twoClusterEngine(t *testing.T, seq []byte, first, second []reads.Read) (*Engine, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	g := gfa.New()
	g.AddSegment(gfa.Segment{Name: "u1", Sequence: seq})
	loader := fakeLoader{"u1": reads.NewSet("u1", len(seq), nil, append(first, second...))}
	assignment := assign(1, first)
	for name, id := range assign(2, second) {
		assignment[name] = id
	}
	writeTable(t, dir, loader["u1"], assignment)
	var stats bytes.Buffer
	return &Engine{
		Graph:       g,
		Consensus:   &referenceConsensus{refs: map[string][]byte{"u1": seq}, loader: loader},
		Distancer:   sameDistance{},
		Loader:      loader,
		ClustersDir: dir,
		Params:      testParams(),
		StatsOut:    &stats,
	}, &stats
}

func TestAbuttingClusters(t *testing.T) {
	seq := []byte(strings.Repeat("ACGTTGCA", 125))
	engine, stats := twoClusterEngine(t, seq, readsOf("a", 5, 0, 500), readsOf("b", 5, 500, 1000))
	require.NoError(t, engine.Run(context.Background(), []string{"u1"}))

	_, ok := engine.Graph.Segment("u1")
	assert.False(t, ok)
	left, ok := engine.Graph.Segment("u1_1")
	require.True(t, ok)
	right, ok := engine.Graph.Segment("u1_2")
	require.True(t, ok)
	assert.Equal(t, seq[:500], left.Sequence)
	assert.Equal(t, seq[500:], right.Sequence)
	assert.Equal(t, []gfa.Link{
		{From: "u1_1", FromOrient: "+", To: "u1_2", ToOrient: "+", Overlap: "0M", Weight: 1},
	}, engine.Graph.Links())
	assert.Contains(t, stats.String(), "u1\t0\t2\t0\n")
}

func TestDistantClustersHaveNoPath(t *testing.T) {
	seq := []byte(strings.Repeat("ACGTTGCA", 125))
	engine, _ := twoClusterEngine(t, seq, readsOf("a", 5, 0, 400), readsOf("b", 5, 600, 1000))
	u, err := engine.prepare("u1")
	require.NoError(t, err)
	engine.splitMulti(context.Background(), u)

	assert.Equal(t, MultiCluster, u.state)
	assert.Zero(t, u.path)
	assert.Equal(t, 2, u.other)
	assert.Empty(t, engine.Graph.Links())
}

func TestResolveCuts(t *testing.T) {
	stats := clustering.StatsTable{
		1: {Start: 0, End: 400},
		2: {Start: 300, End: 700},
		3: {Start: 600, End: 1000},
	}
	paths := [][]int{{1, 2, 3}}
	cutL, cutR := resolveCuts(paths, pathMembers(paths), map[int]bool{1: true}, map[int]bool{3: true}, stats, 1000, 50)
	assert.Equal(t, map[int]int{1: 0, 2: 350, 3: 650}, cutL)
	assert.Equal(t, map[int]int{1: 350, 2: 650, 3: 999}, cutR)
}

func TestReduceOverlapGraph(t *testing.T) {
	stats := clustering.StatsTable{
		1: {Start: 0, End: 400},
		2: {Start: 300, End: 700},
		3: {Start: 600, End: 1000},
		4: {Start: 350, End: 650},
	}
	g := newOverlapGraph([]int{1, 2, 3, 4}, [][2]int{{1, 2}, {2, 3}, {1, 3}, {2, 4}})
	roots, leafs := map[int]bool{1: true}, map[int]bool{3: true}
	reduceOverlapGraph(g, stats, roots, leafs)
	assert.True(t, g.edge(1, 2))
	assert.True(t, g.edge(2, 3))
	assert.False(t, g.edge(1, 3))
	assert.False(t, g.edge(2, 4))

	g = newOverlapGraph([]int{1, 2, 3}, [][2]int{{1, 2}, {1, 3}, {2, 3}})
	roots, leafs = map[int]bool{1: true}, map[int]bool{2: true, 3: true}
	reduceOverlapGraph(g, stats, roots, leafs)
	assert.False(t, g.has(3))
	assert.Equal(t, map[int]bool{2: true}, leafs)
}

func TestFullPaths(t *testing.T) {
	g := newOverlapGraph([]int{1, 2, 3, 4}, [][2]int{{1, 2}, {2, 3}, {2, 4}})
	roots, leafs := map[int]bool{1: true}, map[int]bool{3: true, 4: true}
	assert.Equal(t, [][]int{{1, 2, 3}, {1, 2, 4}}, fullPaths(g, roots, leafs, 10))
	assert.Empty(t, fullPaths(g, roots, leafs, 1))
	assert.Equal(t, []int{1, 2, 3, 4}, pathMembers([][]int{{1, 2, 3}, {1, 2, 4}}))
}

func TestPruneOthers(t *testing.T) {
	g := newOverlapGraph([]int{1, 2, 3, 4}, [][2]int{{1, 2}, {3, 4}})
	stats := clustering.StatsTable{
		1: {Start: 0, End: 100},
		2: {Start: 50, End: 1000},
		3: {Start: 0, End: 500},
		4: {Start: 400, End: 600},
	}
	kept := pruneOthers(g, []int{1, 3, 4}, stats, func(id int) bool { return id == 2 })
	assert.Equal(t, []int{3}, kept)
}

func TestChildSequence(t *testing.T) {
	original := []byte("AAAACCCCGGGG")
	record := &consensus.Record{Sequence: []byte("TTTT"), Start: 4, End: 8}
	assert.Equal(t, []byte("AATTTT"), childSequence(original, record, 2, 7, true))
	assert.Equal(t, []byte("TTTT"), childSequence(original, record, 2, 7, false))
	assert.Equal(t, []byte("TT"), childSequence(original, record, 5, 6, true))
	assert.Equal(t, []byte("A"), childSequence(original, &consensus.Record{Status: consensus.Failed}, 0, 5, false))
}

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 1, floorDiv(3, 2))
	assert.Equal(t, -2, floorDiv(-3, 2))
	assert.Equal(t, 2, floorDiv(4, 2))
}
