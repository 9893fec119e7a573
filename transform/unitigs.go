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

	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/intervals"
)

// splitSingle renames a unitig with exactly one cluster.
func (e *Engine) splitSingle(u *unitig) {
	u.state = SingleCluster
	id := u.clusters[0]
	segment, _ := e.Graph.Segment(u.name)
	e.Graph.AddSegment(gfa.Segment{
		Name:     childName(u.name, id),
		Sequence: slices.Clone(segment.Sequence),
		Depth:    u.stats[id].Coverage,
	})
	u.link, u.src, u.sink = []int{id}, []int{id}, []int{id}
	u.other = 1
	u.removed = true
}

// strongTails reports whether more than StrongClusterMinReads member
// reads of the cluster start, respectively end, near the unitig ends.
func (e *Engine) strongTails(u *unitig, id int) (start, end bool) {
	gap := e.Params.StartEndGap
	starts, ends := 0, 0
	for _, name := range u.members[id] {
		read, ok := u.set.Lookup(name)
		if !ok {
			continue
		}
		if read.Start < gap {
			starts++
		}
		if read.End > u.length-gap {
			ends++
		}
	}
	return starts > e.Params.StrongClusterMinReads, ends > e.Params.StrongClusterMinReads
}

func (e *Engine) consensus(ctx context.Context, u *unitig, id int) *consensus.Record {
	return e.Consensus.Get(ctx, consensus.Key{Cluster: id, Unitig: u.name}, u.members[id])
}

func clamp(seq []byte, from, to int) []byte {
	from = max(0, min(from, len(seq)))
	to = max(from, min(to, len(seq)))
	return seq[from:to]
}

// childSequence clips a consensus to the reference interval
// [left,right]. With insertMain, original sequence fills the gap
// between left and the start of the consensus.
func childSequence(original []byte, record *consensus.Record, left, right int, insertMain bool) []byte {
	diff := len(record.Sequence) - (record.End - record.Start)
	end := right - record.Start + diff + 1
	var seq []byte
	if record.Start > left && insertMain {
		seq = append(seq, clamp(original, left, record.Start)...)
		seq = append(seq, clamp(record.Sequence, 0, end)...)
	} else {
		seq = append(seq, clamp(record.Sequence, left-record.Start, end)...)
	}
	if len(seq) == 0 {
		seq = []byte("A")
	}
	return seq
}

func (e *Engine) addChild(ctx context.Context, u *unitig, id, left, right int, insertMain bool) {
	segment, _ := e.Graph.Segment(u.name)
	record := e.consensus(ctx, u, id)
	name := childName(u.name, id)
	e.Graph.AddSegment(gfa.Segment{
		Name:     name,
		Sequence: childSequence(segment.Sequence, record, left, right, insertMain),
		Depth:    u.stats[id].Coverage,
	})
	e.logger().Debug("unitig added", "segment", name, "left", left, "right", right)
}

// splitMulti replaces a unitig with two or more clusters by full
// clusters, haplotype paths through the cluster overlap graph, and
// the remaining clusters that pass the parental check.
func (e *Engine) splitMulti(ctx context.Context, u *unitig) {
	u.state = MultiCluster
	gap := e.Params.StartEndGap
	roots, leafs := make(map[int]bool), make(map[int]bool)
	var full []int
	for _, id := range u.clusters {
		stats := u.stats[id]
		strongStart, strongEnd := e.strongTails(u, id)
		if stats.Start < gap && stats.End > u.length-gap {
			switch {
			case strongStart && strongEnd:
				record := e.consensus(ctx, u, id)
				e.addChild(ctx, u, id, record.Start, record.End, true)
				full = append(full, id)
			case !strongStart:
				u.stats[id] = clustering.Stats{Start: stats.Start + gap + 1, End: stats.End, Coverage: stats.Coverage}
			default:
				u.stats[id] = clustering.Stats{Start: stats.Start, End: stats.End - gap - 1, Coverage: stats.Coverage}
			}
		}
		if stats.Start < gap && strongStart {
			roots[id] = true
		}
		if stats.End > u.length-gap && strongEnd {
			leafs[id] = true
		}
	}

	edges := e.overlapEdges(ctx, u)
	g := newOverlapGraph(u.clusters, edges)
	reduceOverlapGraph(g, u.stats, roots, leafs)
	paths := fullPaths(g, roots, leafs, e.Params.PathHopLimit)

	isFull := make(map[int]bool, len(full))
	for _, id := range full {
		isFull[id] = true
		delete(roots, id)
		delete(leafs, id)
	}
	paths = slices.DeleteFunc(paths, func(path []int) bool {
		for i, id := range path {
			if isFull[id] || (leafs[id] && i != len(path)-1) {
				return true
			}
		}
		return false
	})

	cutL, cutR := resolveCuts(paths, pathMembers(paths), roots, leafs, u.stats, u.length, gap)
	for _, id := range pathMembers(paths) {
		left, hasLeft := cutL[id]
		right, hasRight := cutR[id]
		if hasLeft == hasRight && left == right {
			for i, path := range paths {
				paths[i] = slices.DeleteFunc(path, func(member int) bool { return member == id })
			}
			continue
		}
		if !hasLeft {
			left = u.stats[id].Start
		}
		if !hasRight {
			right = u.stats[id].End
		}
		e.addChild(ctx, u, id, left, right, true)
	}
	members := pathMembers(paths)
	for _, path := range paths {
		for i := 0; i+1 < len(path); i++ {
			e.Graph.AddLink(gfa.Link{
				From:       childName(u.name, path[i]),
				FromOrient: gfa.Forward,
				To:         childName(u.name, path[i+1]),
				ToOrient:   gfa.Forward,
				Weight:     1,
			})
		}
	}
	if len(members) > 0 {
		u.state = PathsResolved
	}

	inPaths := make(map[int]bool, len(members))
	for _, id := range members {
		inPaths[id] = true
	}
	var others []int
	for _, id := range u.clusters {
		if !isFull[id] && !inPaths[id] {
			others = append(others, id)
		}
	}
	u.full, u.path, u.other = len(full), len(members), len(u.clusters)-len(full)-len(members)

	others = pruneOthers(newOverlapGraph(u.clusters, edges), others, u.stats, func(id int) bool {
		return isFull[id] || inPaths[id]
	})
	if e.keepOthers(u, others, len(full)+len(members) > 0) {
		for _, id := range others {
			e.addChild(ctx, u, id, u.stats[id].Start, u.stats[id].End, false)
		}
	} else {
		e.logger().Debug("other clusters discarded", "unitig", u.name, "clusters", others)
	}
	u.removed = true

	u.src = slices.Clone(full)
	u.sink = slices.Clone(full)
	for _, id := range members {
		if roots[id] {
			u.src = append(u.src, id)
		}
		if leafs[id] {
			u.sink = append(u.sink, id)
		}
	}
	u.link = append(slices.Clone(u.src), u.sink[len(full):]...)
}

// pruneOthers drops clusters that duplicate a full or path cluster,
// and among the remaining clusters keeps the longest of each group of
// overlapping neighbors.
func pruneOthers(g overlapGraph, others []int, stats clustering.StatsTable, represented func(int) bool) []int {
	sorted := slices.Clone(others)
	slices.SortFunc(sorted, func(a, b int) int {
		if c := cmp.Compare(stats[b].Len(), stats[a].Len()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	dropped := make(map[int]bool)
	for _, id := range sorted {
		neighbors := g.neighbors(id)
		if slices.ContainsFunc(neighbors, represented) {
			dropped[id] = true
			continue
		}
		if dropped[id] {
			continue
		}
		for _, n := range neighbors {
			dropped[n] = true
		}
	}
	return slices.DeleteFunc(slices.Clone(others), func(id int) bool { return dropped[id] })
}

// keepOthers reports whether the remaining clusters of a unitig are
// emitted. When full or path clusters exist, the others must cover
// enough of the unitig with a plausible depth.
func (e *Engine) keepOthers(u *unitig, others []int, represented bool) bool {
	if len(others) == 0 {
		return false
	}
	if !represented {
		return true
	}
	var spans []intervals.Interval
	coverage := 0.0
	for _, id := range others {
		stats := u.stats[id]
		coverage += stats.Coverage * float64(stats.Len())
		spans = append(spans, intervals.Interval{Start: stats.Start, End: stats.End})
	}
	length := float64(max(1, u.length))
	coverage /= length
	covered := float64(intervals.UnionLength(spans)) / length
	e.logger().Debug("parental check", "unitig", u.name, "coverage", coverage, "covered", covered)
	return covered >= e.Params.ParentalMinLen &&
		coverage >= e.Params.ParentalMinCoverage &&
		coverage <= e.Params.ParentalMaxCoverage
}
