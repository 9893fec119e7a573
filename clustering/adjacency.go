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
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elstrain/reads"
)

// AdjacencyOptions holds the thresholds of the distance matrix.
type AdjacencyOptions struct {
	// EdgeRemoval is the largest number of mismatching alleles for
	// which two reads are still connected.
	EdgeRemoval        int
	MinSharedPositions int
	MinReadOverlap     int
}

// An Edge connects a read to another read with a higher index.
type Edge struct {
	To     int
	Weight float64
}

// AdjacencyMatrix is a symmetric weighted read graph. Only the upper
// triangle is stored.
type AdjacencyMatrix struct {
	Names []string
	rows  [][]Edge
}

// Len returns the number of reads.
func (m *AdjacencyMatrix) Len() int {
	return len(m.Names)
}

// Weight returns the weight of the edge between reads i and j.
func (m *AdjacencyMatrix) Weight(i, j int) (float64, bool) {
	if i > j {
		i, j = j, i
	}
	if i == j || i < 0 || j >= len(m.rows) {
		return 0, false
	}
	row := m.rows[i]
	k := sort.Search(len(row), func(k int) bool { return row[k].To >= j })
	if k < len(row) && row[k].To == j {
		return row[k].Weight, true
	}
	return 0, false
}

// Edges calls fn once for every edge, with i < j.
func (m *AdjacencyMatrix) Edges(fn func(i, j int, weight float64)) {
	for i, row := range m.rows {
		for _, edge := range row {
			fn(i, edge.To, edge.Weight)
		}
	}
}

// compareCalls counts the shared called positions of two reads and
// how many of them disagree. Missing and gap calls are not counted.
func compareCalls(a, b *reads.Read, from, to int) (shared, mismatches int) {
	for k := from; k < to; k++ {
		ca, cb := a.Calls[k], b.Calls[k]
		if ca == reads.Missing || cb == reads.Missing || ca == reads.GapCall || cb == reads.GapCall {
			continue
		}
		shared++
		if ca != cb {
			mismatches++
		}
	}
	return shared, mismatches
}

// BuildAdjacency computes the weighted read graph of a read set. Rows
// are computed in parallel; each weight only depends on its pair.
func BuildAdjacency(set *reads.Set, options AdjacencyOptions) *AdjacencyMatrix {
	n := len(set.Reads)
	m := &AdjacencyMatrix{Names: make([]string, n), rows: make([][]Edge, n)}
	for i := range set.Reads {
		m.Names[i] = set.Reads[i].Name
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return set.Reads[order[x]].Start < set.Reads[order[y]].Start
	})
	positions := set.Positions
	maxMismatches := options.EdgeRemoval
	found := make([][]Edge, n)
	parallel.Range(0, n, 0, func(low, high int) {
		for x := low; x < high; x++ {
			a := &set.Reads[order[x]]
			for y := x + 1; y < n; y++ {
				b := &set.Reads[order[y]]
				if b.Start > a.End-options.MinReadOverlap {
					break
				}
				start, end := b.Start, min(a.End, b.End)
				if end-start < options.MinReadOverlap || end <= start {
					continue
				}
				from := sort.SearchInts(positions, start)
				to := sort.SearchInts(positions, end)
				shared, mismatches := compareCalls(a, b, from, to)
				if shared < options.MinSharedPositions || shared == 0 || mismatches > maxMismatches {
					continue
				}
				weight := 1 - float64(mismatches)/float64(maxMismatches+1)
				found[x] = append(found[x], Edge{To: order[y], Weight: weight})
			}
		}
	})
	for x, edges := range found {
		for _, edge := range edges {
			i, j := order[x], edge.To
			if i > j {
				i, j = j, i
			}
			m.rows[i] = append(m.rows[i], Edge{To: j, Weight: edge.Weight})
		}
	}
	for i := range m.rows {
		row := m.rows[i]
		sort.Slice(row, func(x, y int) bool { return row[x].To < row[y].To })
	}
	return m
}
