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

package clustering

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exascience/elstrain/reads"
)

func calls(s string) []byte {
	result := []byte(s)
	for i, c := range result {
		if c == '0' {
			result[i] = reads.Missing
		}
	}
	return result
}

func TestBuildAdjacency(t *testing.T) {
	set := reads.NewSet("u1", 300, []int{10, 20, 30}, []reads.Read{
		{Name: "a", Start: 0, End: 100, Calls: calls("ACG")},
		{Name: "b", Start: 0, End: 100, Calls: calls("ACG")},
		{Name: "c", Start: 0, End: 100, Calls: calls("TCG")},
		{Name: "d", Start: 0, End: 100, Calls: calls("TA-")},
		{Name: "e", Start: 200, End: 300, Calls: calls("000")},
		{Name: "f", Start: 0, End: 100, Calls: calls("000")},
	})
	m := BuildAdjacency(set, AdjacencyOptions{EdgeRemoval: 1, MinSharedPositions: 1, MinReadOverlap: 50})
	require.Equal(t, 6, m.Len())

	weight, ok := m.Weight(0, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, weight, 1e-9)
	weight, ok = m.Weight(2, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, weight, 1e-9)
	_, ok = m.Weight(0, 3)
	assert.False(t, ok, "two mismatches exceed the edge removal threshold")
	weight, ok = m.Weight(2, 3)
	require.True(t, ok, "gap calls are not compared")
	assert.InDelta(t, 0.5, weight, 1e-9)
	for _, other := range []int{0, 1, 2, 3, 5} {
		_, ok = m.Weight(4, other)
		assert.False(t, ok)
		_, ok = m.Weight(5, other)
		assert.False(t, ok)
	}

	for i := 0; i < m.Len(); i++ {
		for j := 0; j < m.Len(); j++ {
			wij, okij := m.Weight(i, j)
			wji, okji := m.Weight(j, i)
			assert.Equal(t, okij, okji)
			assert.Equal(t, wij, wji)
		}
	}
}

func cliqueSet(groups ...int) *reads.Set {
	var rs []reads.Read
	for g, size := range groups {
		allele := []byte{"ACGT"[g%4]}
		for k := 0; k < size; k++ {
			rs = append(rs, reads.Read{Name: fmt.Sprintf("g%v_r%v", g, k), Start: 0, End: 2000, Calls: allele})
		}
	}
	return reads.NewSet("u1", 2000, []int{500}, rs)
}

func TestClustererStructure(t *testing.T) {
	set := cliqueSet(6, 5, 1)
	m := BuildAdjacency(set, AdjacencyOptions{EdgeRemoval: 0, MinSharedPositions: 1, MinReadOverlap: 1000})
	assignment, counts := Clusterer{MinClusterSize: 4}.Cluster(m)

	require.Len(t, assignment, len(set.Reads))
	members := assignment.Members()
	for id, names := range members {
		if id != Unclustered {
			assert.GreaterOrEqual(t, len(names), 4)
		}
	}
	assert.Equal(t, Unclustered, assignment["g2_r0"])
	assert.Equal(t, 2, counts.ClustersFound)
	assert.Equal(t, 1, counts.UnclassifiedReads)
	assert.NotEqual(t, assignment["g0_r0"], assignment["g1_r0"])
	for k := 1; k < 6; k++ {
		assert.Equal(t, assignment["g0_r0"], assignment[fmt.Sprintf("g0_r%v", k)])
	}
}

func TestClustererEmpty(t *testing.T) {
	assignment, counts := Clusterer{MinClusterSize: 4}.Cluster(&AdjacencyMatrix{})
	assert.Empty(t, assignment)
	assert.Equal(t, Counts{}, counts)
}

type fakeDistancer map[[2]int]int

func (f fakeDistancer) Distance(_ context.Context, _ string, a, b Members) (int, bool) {
	key := [2]int{min(a.ID, b.ID), max(a.ID, b.ID)}
	distance, ok := f[key]
	if !ok {
		return 1, false
	}
	return distance, true
}

func postprocessFixture() (*reads.Set, Assignment) {
	var rs []reads.Read
	assignment := make(Assignment)
	add := func(prefix string, n, id, start, end int) {
		for k := 0; k < n; k++ {
			name := fmt.Sprintf("%v%v", prefix, k)
			rs = append(rs, reads.Read{Name: name, Start: start, End: end})
			assignment[name] = id
		}
	}
	add("a", 6, 1, 0, 2000)
	add("b", 6, 2, 0, 2000)
	add("s", 2, 3, 500, 1500)
	add("u", 1, Unclustered, 0, 100)
	return reads.NewSet("u1", 2000, []int{100}, rs), assignment
}

func TestRefineMergesAndFolds(t *testing.T) {
	set, initial := postprocessFixture()
	p := Postprocessor{
		Distancer: fakeDistancer{{1, 2}: 0, {3, 4}: 1},
		Options:   PostprocessOptions{MinReadOverlap: 1000, MergeDivergence: 0, MinPostprocessReads: 6, ClusterDivergence: 1},
	}
	assignment, stats := p.Refine(context.Background(), set, initial)

	assert.Equal(t, []int{5}, assignment.Clusters())
	assert.Len(t, assignment.Members()[5], 14)
	assert.Equal(t, Unclustered, assignment["u0"])
	assert.Equal(t, Stats{Start: 0, End: 2000, Coverage: 13}, stats[5])
	assert.Equal(t, 1, initial["a0"], "input assignment is not modified")
}

func TestRefineUnclustersIncomparableSmallCluster(t *testing.T) {
	set, initial := postprocessFixture()
	p := Postprocessor{
		Distancer: fakeDistancer{{1, 2}: 3},
		Options:   PostprocessOptions{MinReadOverlap: 1000, MergeDivergence: 0, MinPostprocessReads: 6, ClusterDivergence: 1},
	}
	assignment, stats := p.Refine(context.Background(), set, initial)

	assert.Equal(t, []int{1, 2}, assignment.Clusters())
	assert.Equal(t, Unclustered, assignment["s0"])
	assert.Equal(t, Unclustered, assignment["s1"])
	assert.Len(t, stats, 2)
}

type fakeLoader map[string]*reads.Set

func (f fakeLoader) Load(unitig string) (*reads.Set, error) {
	if set, ok := f[unitig]; ok {
		return set, nil
	}
	return nil, fmt.Errorf("unknown unitig %v", unitig)
}

func TestPhaserWithoutPositions(t *testing.T) {
	set := reads.NewSet("u1", 1000, nil, []reads.Read{
		{Name: "r1", Start: 0, End: 600},
		{Name: "r2", Start: 400, End: 1000},
	})
	p := Phaser{Loader: fakeLoader{"u1": set}, Clusterer: Clusterer{MinClusterSize: 4}}
	table, loaded, err := p.Unitig(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, set, loaded)
	assert.Equal(t, Assignment{"r1": DefaultCluster, "r2": DefaultCluster}, table.Assignment)
	assert.Equal(t, Stats{Start: 0, End: 1000, Coverage: 1.2}, table.Stats[DefaultCluster])

	_, _, err = p.Unitig(context.Background(), "u2")
	assert.Error(t, err)
}

func TestTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	table := Table{
		Unitig:     "edge_7",
		Assignment: Assignment{"r1": 1, "r2": 2, "r3": Unclustered},
		Stats:      StatsTable{1: {Start: 0, End: 100, Coverage: 2.5}, 2: {Start: 50, End: 300, Coverage: 11}},
	}
	require.NoError(t, WriteTable(dir, table))
	loaded, ok, err := ReadTable(dir, "edge_7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, table, loaded)

	_, ok, err = ReadTable(dir, "edge_8")
	require.NoError(t, err)
	assert.False(t, ok)
}
