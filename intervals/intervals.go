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

package intervals

import (
	"sort"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"
)

// Interval is a half-open reference range [Start, End).
type Interval struct {
	Start, End int
}

// Len returns the number of positions covered by the interval.
func (interval Interval) Len() int {
	if interval.End < interval.Start {
		return 0
	}
	return interval.End - interval.Start
}

// SortByStart sorts a slice of Interval by Start position.
func SortByStart(intervals []Interval) {
	sort.SliceStable(intervals, func(i, j int) bool {
		return intervals[i].Start < intervals[j].Start
	})
}

type stableIntervalSorter []Interval

func (s stableIntervalSorter) SequentialSort(i, j int) {
	SortByStart(s[i:j])
}

func (s stableIntervalSorter) NewTemp() psort.StableSorter {
	return stableIntervalSorter(make([]Interval, len(s)))
}

func (s stableIntervalSorter) Len() int {
	return len(s)
}

func (s stableIntervalSorter) Less(i, j int) bool {
	return s[i].Start < s[j].Start
}

func (s stableIntervalSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableIntervalSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ParallelSortByStart sorts a slice of Interval by Start position using
// a parallel stable sort.
func ParallelSortByStart(intervals []Interval) {
	psort.StableSort(stableIntervalSorter(intervals))
}

// Extend makes interval1 larger if it overlaps with or touches
// interval2, by storing max(interval1.End, interval2.End) in
// interval1.End; otherwise, interval1 remains unchanged.
// Returns true if the two intervals were joined, false otherwise.
// interval2.Start >= interval1.Start must be true before
// calling Extend.
func (interval1 *Interval) Extend(interval2 Interval) bool {
	if interval2.Start > interval1.End {
		return false
	}
	if interval2.End > interval1.End {
		interval1.End = interval2.End
	}
	return true
}

// Flatten merges overlapping intervals into larger intervals.
// intervals must be sorted by Start before calling Flatten.
// The resulting slice is sorted by Start, and no two
// intervals in the result overlap with each other.
// The result shares memory with the intervals argument.
func Flatten(intervals []Interval) []Interval {
	for i, n := 0, len(intervals)-1; i < n; i++ {
		if intervals[i].Extend(intervals[i+1]) {
			n++
			for j := i + 1; j < n; j++ {
				if !intervals[i].Extend(intervals[j]) {
					i++
					intervals[i] = intervals[j]
				}
			}
			return intervals[:i+1]
		}
	}
	return intervals
}

const parallelFlattenGrainSize = 0x1000

// ParallelFlatten merges overlapping intervals into larger intervals,
// using a parallel algorithm.
// intervals must be sorted by Start before calling Flatten.
// The result shares memory with the intervals argument.
func ParallelFlatten(intervals []Interval) []Interval {
	if len(intervals) < parallelFlattenGrainSize {
		return Flatten(intervals)
	}
	half := len(intervals) >> 1
	left, right := intervals[:half], intervals[half:]
	parallel.Do(
		func() { left = ParallelFlatten(left) },
		func() { right = ParallelFlatten(right) },
	)
	for len(right) > 0 && left[len(left)-1].Extend(right[0]) {
		right = right[1:]
	}
	return append(left, right...)
}

// UnionLength returns the number of distinct positions covered by the
// given intervals. The argument is not modified.
func UnionLength(intervals []Interval) (length int) {
	if len(intervals) == 0 {
		return 0
	}
	ivals := make([]Interval, 0, len(intervals))
	for _, ival := range intervals {
		if ival.Len() > 0 {
			ivals = append(ivals, ival)
		}
	}
	ParallelSortByStart(ivals)
	for _, ival := range ParallelFlatten(ivals) {
		length += ival.Len()
	}
	return length
}

// Intersection returns the overlap of two intervals, and false if
// they do not overlap by at least one position.
func Intersection(interval1, interval2 Interval) (Interval, bool) {
	result := Interval{Start: interval1.Start, End: interval1.End}
	if interval2.Start > result.Start {
		result.Start = interval2.Start
	}
	if interval2.End < result.End {
		result.End = interval2.End
	}
	return result, result.End > result.Start
}

// Contains reports whether outer strictly contains inner on both
// sides.
func Contains(outer, inner Interval) bool {
	return outer.Start < inner.Start && outer.End > inner.End
}

// Depth returns the number of intervals that strictly span pos, that
// is Start < pos < End.
func Depth(intervals []Interval, pos int) (depth int) {
	for _, ival := range intervals {
		if ival.Start < pos && pos < ival.End {
			depth++
		}
	}
	return depth
}

// DepthProfile returns Depth for every position in [start, end) in
// one sweep over the intervals.
func DepthProfile(intervals []Interval, start, end int) []int32 {
	if end <= start {
		return nil
	}
	diff := make([]int32, end-start+1)
	for _, ival := range intervals {
		from, to := ival.Start+1, ival.End
		if from < start {
			from = start
		}
		if to > end {
			to = end
		}
		if from >= to {
			continue
		}
		diff[from-start]++
		diff[to-start]--
	}
	profile := make([]int32, end-start)
	var depth int32
	for i := range profile {
		depth += diff[i]
		profile[i] = depth
	}
	return profile
}
