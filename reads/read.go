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

// Package reads models reads aligned to assembly unitigs together with
// their allele calls at informative positions.
package reads

import (
	"github.com/exascience/elstrain/intervals"
)

// Special allele calls.
const (
	Missing byte = 0
	GapCall byte = '-'
)

// Orientations of a segment end in the assembly graph.
const (
	Forward = "+"
	Reverse = "-"
)

// FlipOrientation returns the opposite orientation.
func FlipOrientation(orientation string) string {
	if orientation == Forward {
		return Reverse
	}
	return Forward
}

// A ClipLink records that a clipped part of a read aligns to another
// unitig with the given relative orientation.
type ClipLink struct {
	Unitig      string
	Orientation string
}

// A Read is one alignment of a read to a unitig.
type Read struct {
	Name       string
	Start, End int
	// Calls holds one allele per informative position of the read
	// set, Missing where the read does not cover the position, and
	// GapCall where it carries a deletion.
	Calls      []byte
	RightClips []ClipLink
	LeftClips  []ClipLink
}

// Interval returns the reference span of the read.
func (read *Read) Interval() intervals.Interval {
	return intervals.Interval{Start: read.Start, End: read.End}
}

// A Set holds the reads of one unitig.
type Set struct {
	Unitig    string
	Length    int
	Positions []int
	Reads     []Read
	byName    map[string]int
}

// NewSet creates a read set. Reads with a duplicate name after the
// first one are ignored.
func NewSet(unitig string, length int, positions []int, reads []Read) *Set {
	set := &Set{
		Unitig:    unitig,
		Length:    length,
		Positions: positions,
		Reads:     make([]Read, 0, len(reads)),
		byName:    make(map[string]int, len(reads)),
	}
	for _, read := range reads {
		if _, ok := set.byName[read.Name]; ok {
			continue
		}
		set.byName[read.Name] = len(set.Reads)
		set.Reads = append(set.Reads, read)
	}
	return set
}

// Lookup returns the read with the given name.
func (set *Set) Lookup(name string) (*Read, bool) {
	if index, ok := set.byName[name]; ok {
		return &set.Reads[index], true
	}
	return nil, false
}

// Intervals returns the reference spans of the named reads, skipping
// names that are not part of the set.
func (set *Set) Intervals(names []string) []intervals.Interval {
	result := make([]intervals.Interval, 0, len(names))
	for _, name := range names {
		if read, ok := set.Lookup(name); ok {
			result = append(result, read.Interval())
		}
	}
	return result
}

// MeanDepth returns the total aligned length of the reads divided by
// the unitig length.
func (set *Set) MeanDepth() float64 {
	if set.Length <= 0 {
		return 0
	}
	total := 0
	for i := range set.Reads {
		total += set.Reads[i].End - set.Reads[i].Start
	}
	return float64(total) / float64(set.Length)
}

// A Loader produces the read set of a unitig.
type Loader interface {
	Load(unitig string) (*Set, error)
}
