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

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

// Counts reports the outcome of a clustering run.
type Counts struct {
	ClustersFound     int
	UnclassifiedReads int
}

// Clusterer detects read communities with Louvain modularization.
type Clusterer struct {
	MinClusterSize int
	// Resolution of the modularity score; 0 means 1.
	Resolution float64
}

// Cluster assigns every read of m a cluster id. Communities smaller
// than MinClusterSize are assigned Unclustered. Results may vary
// between runs.
func (c Clusterer) Cluster(m *AdjacencyMatrix) (Assignment, Counts) {
	assignment := make(Assignment, m.Len())
	var counts Counts
	if m.Len() == 0 {
		return assignment, counts
	}
	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < m.Len(); i++ {
		g.AddNode(simple.Node(i))
	}
	m.Edges(func(i, j int, weight float64) {
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), weight))
	})
	resolution := c.Resolution
	if resolution == 0 {
		resolution = 1
	}
	communities := community.Modularize(g, resolution, nil).Communities()

	groups := make([][]int, 0, len(communities))
	for _, nodes := range communities {
		group := make([]int, len(nodes))
		for k, node := range nodes {
			group[k] = int(node.ID())
		}
		sort.Ints(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(x, y int) bool {
		if len(groups[x]) != len(groups[y]) {
			return len(groups[x]) > len(groups[y])
		}
		return groups[x][0] < groups[y][0]
	})

	next := 1
	for _, group := range groups {
		id := Unclustered
		if len(group) >= c.MinClusterSize {
			id = next
			next++
			counts.ClustersFound++
		} else {
			counts.UnclassifiedReads += len(group)
		}
		for _, i := range group {
			assignment[m.Names[i]] = id
		}
	}
	return assignment, counts
}
