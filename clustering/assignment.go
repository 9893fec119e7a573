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

// Package clustering groups the reads of a unitig into per-strain
// clusters.
package clustering

import (
	"sort"

	"github.com/exascience/elstrain/reads"
)

// Unclustered is the cluster id of reads that belong to no cluster.
const Unclustered = 0

// An Assignment maps read names to cluster ids.
type Assignment map[string]int

// Members returns the sorted read names of every cluster, including
// Unclustered.
func (assignment Assignment) Members() map[int][]string {
	members := make(map[int][]string)
	for name, id := range assignment {
		members[id] = append(members[id], name)
	}
	for _, names := range members {
		sort.Strings(names)
	}
	return members
}

// Clusters returns the sorted ids of all clusters, excluding
// Unclustered.
func (assignment Assignment) Clusters() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, id := range assignment {
		if id != Unclustered && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Stats summarizes the span and depth of one cluster.
type Stats struct {
	Start, End int
	Coverage   float64
}

// Len returns the length of the cluster span.
func (stats Stats) Len() int {
	return stats.End - stats.Start
}

// StatsTable maps cluster ids to their statistics.
type StatsTable map[int]Stats

// ComputeStats derives the span and mean depth of every cluster from
// its member reads. Unclustered reads are not summarized.
func ComputeStats(set *reads.Set, assignment Assignment) StatsTable {
	table := make(StatsTable)
	total := make(map[int]int)
	for name, id := range assignment {
		if id == Unclustered {
			continue
		}
		read, ok := set.Lookup(name)
		if !ok {
			continue
		}
		stats, found := table[id]
		if !found || read.Start < stats.Start {
			stats.Start = read.Start
		}
		if !found || read.End > stats.End {
			stats.End = read.End
		}
		table[id] = stats
		total[id] += read.End - read.Start
	}
	for id, stats := range table {
		if span := stats.Len(); span > 0 {
			stats.Coverage = float64(total[id]) / float64(span)
			table[id] = stats
		}
	}
	return table
}

// Table is the persisted clustering result of one unitig.
type Table struct {
	Unitig     string
	Assignment Assignment
	Stats      StatsTable
}
