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
	"cmp"
	"context"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/intervals"
)

// overlapGraph is a directed graph over the cluster ids of one
// unitig. An edge a->b means that cluster a precedes cluster b and
// that both have compatible consensus sequences where they overlap.
type overlapGraph struct {
	*simple.DirectedGraph
}

func newOverlapGraph(ids []int, edges [][2]int) overlapGraph {
	g := overlapGraph{simple.NewDirectedGraph()}
	for _, id := range ids {
		g.AddNode(simple.Node(id))
	}
	for _, edge := range edges {
		if edge[0] != edge[1] {
			g.SetEdge(g.NewEdge(simple.Node(edge[0]), simple.Node(edge[1])))
		}
	}
	return g
}

func sortedIDs(nodes graph.Nodes) []int {
	var ids []int
	for _, node := range graph.NodesOf(nodes) {
		ids = append(ids, int(node.ID()))
	}
	slices.Sort(ids)
	return ids
}

func (g overlapGraph) has(id int) bool {
	return g.Node(int64(id)) != nil
}

func (g overlapGraph) successors(id int) []int {
	if !g.has(id) {
		return nil
	}
	return sortedIDs(g.From(int64(id)))
}

func (g overlapGraph) predecessors(id int) []int {
	if !g.has(id) {
		return nil
	}
	return sortedIDs(g.To(int64(id)))
}

func (g overlapGraph) neighbors(id int) []int {
	result := append(g.successors(id), g.predecessors(id)...)
	slices.Sort(result)
	return slices.Compact(result)
}

func (g overlapGraph) edge(from, to int) bool {
	return g.HasEdgeFromTo(int64(from), int64(to))
}

func nested(outer, inner clustering.Stats) bool {
	return outer.Start < inner.Start && outer.End > inner.End
}

// overlapEdges compares the consensus sequences of all pairs of
// clusters with overlapping spans, ordered by span. Clusters that abut
// within StartEndGap have no shared span and score as
// consensus.Incomparable.
func (e *Engine) overlapEdges(ctx context.Context, u *unitig) (edges [][2]int) {
	ids := slices.Clone(u.clusters)
	slices.SortFunc(ids, func(a, b int) int {
		sa, sb := u.stats[a], u.stats[b]
		if c := cmp.Compare(sa.Start, sb.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(sa.End, sb.End); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for i, a := range ids {
		spanA := intervals.Interval{Start: u.stats[a].Start, End: u.stats[a].End}
		for _, b := range ids[i+1:] {
			spanB := intervals.Interval{Start: u.stats[b].Start, End: u.stats[b].End}
			distance := consensus.Incomparable
			if _, ok := intervals.Intersection(spanA, spanB); ok {
				distance, _ = e.Distancer.Distance(ctx, u.name,
					clustering.Members{ID: a, Reads: u.members[a]},
					clustering.Members{ID: b, Reads: u.members[b]})
			} else if spanB.Start-spanA.End > e.Params.StartEndGap {
				continue
			}
			if distance <= e.Params.ClusterDivergence {
				edges = append(edges, [2]int{a, b})
			}
		}
	}
	return edges
}

// reduceOverlapGraph removes redundant roots and leafs, edges between
// nested clusters, and edges implied by a path of two or three edges.
func reduceOverlapGraph(g overlapGraph, stats clustering.StatsTable, roots, leafs map[int]bool) {
	var drop []int
	for _, leaf := range sortedKeys(leafs) {
		for _, other := range sortedKeys(leafs) {
			if leaf != other && g.edge(leaf, other) {
				drop = append(drop, other)
			}
		}
	}
	for _, root := range sortedKeys(roots) {
		for _, other := range sortedKeys(roots) {
			if root != other && g.edge(other, root) {
				drop = append(drop, other)
			}
		}
	}

	for _, from := range sortedIDs(g.Nodes()) {
		for _, to := range g.successors(from) {
			if nested(stats[from], stats[to]) || nested(stats[to], stats[from]) {
				g.RemoveEdge(int64(from), int64(to))
			}
		}
	}

	for _, id := range drop {
		if g.has(id) {
			g.RemoveNode(int64(id))
		}
		delete(roots, id)
		delete(leafs, id)
	}

	var implied [][2]int
	for _, from := range sortedIDs(g.Nodes()) {
		for _, to := range g.successors(from) {
			if g.implied(from, to) {
				implied = append(implied, [2]int{from, to})
			}
		}
	}
	for _, edge := range implied {
		g.RemoveEdge(int64(edge[0]), int64(edge[1]))
	}
}

// implied reports whether to can be reached from from in two or three
// edges.
func (g overlapGraph) implied(from, to int) bool {
	for _, via := range g.successors(from) {
		if via == to {
			continue
		}
		if g.edge(via, to) {
			return true
		}
		for _, via2 := range g.successors(via) {
			if via2 != from && via2 != to && g.edge(via2, to) {
				return true
			}
		}
	}
	return false
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// fullPaths enumerates the simple paths of at most limit edges from a
// root to a leaf.
func fullPaths(g overlapGraph, roots, leafs map[int]bool, limit int) (paths [][]int) {
	onPath := make(map[int]bool)
	var walk func(path []int)
	walk = func(path []int) {
		last := path[len(path)-1]
		if len(path) > 1 && leafs[last] {
			paths = append(paths, slices.Clone(path))
		}
		if len(path)-1 >= limit {
			return
		}
		for _, next := range g.successors(last) {
			if onPath[next] {
				continue
			}
			onPath[next] = true
			walk(append(path, next))
			delete(onPath, next)
		}
	}
	for _, root := range sortedKeys(roots) {
		if !g.has(root) {
			continue
		}
		onPath[root] = true
		walk([]int{root})
		delete(onPath, root)
	}
	return paths
}

func pathMembers(paths [][]int) []int {
	var members []int
	for _, path := range paths {
		members = append(members, path...)
	}
	slices.Sort(members)
	return slices.Compact(members)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// neighborhood collects the clusters that share a boundary with the
// successors of member: left holds the clusters starting at the
// boundary, right the clusters ending there.
func neighborhood(paths [][]int, member int) (left, right []int) {
	inLeft := make(map[int]bool)
	var queue []int
	enqueue := func(id int) {
		if !slices.Contains(queue, id) {
			queue = append(queue, id)
		}
	}
	for _, path := range paths {
		if i := slices.Index(path, member); i >= 0 && i+1 < len(path) {
			left = append(left, path[i+1])
			inLeft[path[i+1]] = true
			enqueue(path[i+1])
		}
	}
	visited := make(map[int]bool)
	for len(queue) > 0 {
		n := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		visited[n] = true
		for _, path := range paths {
			i := slices.Index(path, n)
			if i < 0 {
				continue
			}
			if inLeft[n] {
				if i > 0 && !visited[path[i-1]] {
					right = append(right, path[i-1])
					enqueue(path[i-1])
				}
			} else if i+1 < len(path) && !visited[path[i+1]] {
				left = append(left, path[i+1])
				inLeft[path[i+1]] = true
				enqueue(path[i+1])
			}
		}
	}
	return left, right
}

// resolveCuts computes the left and right cut points of the path
// members. Clusters are visited by increasing end; the cut shared by
// a cluster's successors and their predecessors lies halfway between
// the latest successor start and the earliest predecessor end.
// Members without a resolved cut are absent from the maps.
func resolveCuts(paths [][]int, members []int, roots, leafs map[int]bool, stats clustering.StatsTable, length, gap int) (cutL, cutR map[int]int) {
	cutL, cutR = make(map[int]int), make(map[int]int)
	for _, id := range members {
		if roots[id] && stats[id].Start < gap {
			cutL[id] = stats[id].Start
		}
		if leafs[id] {
			cutR[id] = length - 1
		}
	}
	order := slices.Clone(members)
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(stats[a].End, stats[b].End)
	})

	for _, member := range order {
		_, hasLeft := cutL[member]
		right, hasRight := cutR[member]
		switch {
		case hasLeft && (!hasRight || leafs[member]):
			starting, ending := neighborhood(paths, member)
			var border int
			if leafs[member] {
				border = cutR[member]
			} else {
				if len(starting) == 0 || len(ending) == 0 {
					continue
				}
				maxStart := stats[starting[0]].Start
				for _, id := range starting[1:] {
					maxStart = max(maxStart, stats[id].Start)
				}
				minEnd := stats[ending[0]].End
				for _, id := range ending[1:] {
					minEnd = min(minEnd, stats[id].End)
				}
				border = maxStart + floorDiv(minEnd-maxStart, 2)
			}
			for _, id := range starting {
				cutL[id] = border
			}
			for _, id := range ending {
				cutR[id] = border
			}
		case hasRight:
			for _, path := range paths {
				if i := slices.Index(path, member); i >= 0 && i+1 < len(path) {
					cutL[path[i+1]] = right
				}
			}
		}
	}

	for _, member := range order {
		if _, ok := cutL[member]; ok {
			continue
		}
		for _, path := range paths {
			if i := slices.Index(path, member); i > 0 {
				if right, ok := cutR[path[i-1]]; ok {
					cutL[member] = right
				} else {
					delete(cutL, member)
				}
			}
		}
	}
	return cutL, cutR
}
