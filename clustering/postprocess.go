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
	"log/slog"
	"sort"

	"github.com/exascience/elstrain/intervals"
	"github.com/exascience/elstrain/reads"
)

// Members identifies a cluster together with its reads.
type Members struct {
	ID    int
	Reads []string
}

// A Distancer compares the consensus sequences of two clusters of a
// unitig. It reports false when the clusters cannot be compared.
type Distancer interface {
	Distance(ctx context.Context, unitig string, a, b Members) (int, bool)
}

// PostprocessOptions holds the thresholds of cluster refinement.
type PostprocessOptions struct {
	MinReadOverlap      int
	MergeDivergence     int
	MinPostprocessReads int
	ClusterDivergence   int
}

// Postprocessor refines an initial assignment using consensus
// distances.
type Postprocessor struct {
	Distancer Distancer
	Options   PostprocessOptions
	Logger    *slog.Logger
}

func (p Postprocessor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func nextClusterID(assignment Assignment) int {
	next := 1
	for _, id := range assignment {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// Refine merges indistinguishable clusters, folds small clusters into
// their closest larger neighbor, and returns the refined assignment
// with recomputed statistics. The input assignment is not modified.
func (p Postprocessor) Refine(ctx context.Context, set *reads.Set, initial Assignment) (Assignment, StatsTable) {
	assignment := make(Assignment, len(initial))
	for name, id := range initial {
		assignment[name] = id
	}
	p.merge(ctx, set, assignment)
	p.foldSmall(ctx, set, assignment)
	return assignment, ComputeStats(set, assignment)
}

func (p Postprocessor) merge(ctx context.Context, set *reads.Set, assignment Assignment) {
	ids := assignment.Clusters()
	if len(ids) < 2 {
		return
	}
	members := assignment.Members()
	stats := ComputeStats(set, assignment)
	grouping := make([]int, len(ids))
	for i := range grouping {
		grouping[i] = i
	}
	for x := range ids {
		for y := x + 1; y < len(ids); y++ {
			if ctx.Err() != nil {
				return
			}
			a, b := stats[ids[x]], stats[ids[y]]
			overlap, ok := intervals.Intersection(intervals.Interval{Start: a.Start, End: a.End}, intervals.Interval{Start: b.Start, End: b.End})
			if !ok || overlap.Len() < p.Options.MinReadOverlap {
				continue
			}
			distance, ok := p.Distancer.Distance(ctx, set.Unitig,
				Members{ID: ids[x], Reads: members[ids[x]]},
				Members{ID: ids[y], Reads: members[ids[y]]})
			if ok && distance <= p.Options.MergeDivergence {
				joinNodes(grouping, x, y)
			}
		}
	}
	next := nextClusterID(assignment)
	for _, group := range groups(grouping) {
		joined := make(map[int]bool, len(group))
		for _, x := range group {
			joined[ids[x]] = true
		}
		for name, id := range assignment {
			if joined[id] {
				assignment[name] = next
			}
		}
		p.logger().Debug("merged clusters", "unitig", set.Unitig, "clusters", len(group), "id", next)
		next++
	}
}

func (p Postprocessor) foldSmall(ctx context.Context, set *reads.Set, assignment Assignment) {
	members := assignment.Members()
	var small, large []int
	for _, id := range assignment.Clusters() {
		if len(members[id]) < p.Options.MinPostprocessReads {
			small = append(small, id)
		} else {
			large = append(large, id)
		}
	}
	if len(small) == 0 {
		return
	}
	sort.SliceStable(small, func(x, y int) bool {
		return len(members[small[x]]) < len(members[small[y]])
	})
	target := make(map[int]int, len(small))
	for _, id := range small {
		target[id] = Unclustered
		best := -1
		for _, candidate := range large {
			if ctx.Err() != nil {
				break
			}
			distance, ok := p.Distancer.Distance(ctx, set.Unitig,
				Members{ID: id, Reads: members[id]},
				Members{ID: candidate, Reads: members[candidate]})
			if !ok || distance > p.Options.ClusterDivergence {
				continue
			}
			if best < 0 || distance < best {
				best = distance
				target[id] = candidate
			}
		}
	}
	// Clusters that absorb reads get a fresh id so that their stale
	// consensus is never reused.
	renamed := make(map[int]int)
	next := nextClusterID(assignment)
	for _, id := range small {
		if to := target[id]; to != Unclustered {
			if _, ok := renamed[to]; !ok {
				renamed[to] = next
				next++
			}
		}
	}
	for name, id := range assignment {
		if to, ok := target[id]; ok {
			id = to
		}
		if fresh, ok := renamed[id]; ok {
			id = fresh
		}
		assignment[name] = id
	}
}
