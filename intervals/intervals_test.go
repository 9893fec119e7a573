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
	"math/rand"
	"testing"
)

func intervalsEqual(intervals1, intervals2 []Interval) bool {
	if len(intervals1) != len(intervals2) {
		return false
	}
	for i, interval1 := range intervals1 {
		if interval1 != intervals2[i] {
			return false
		}
	}
	return true
}

func makeLargeIntervalsSlice() (result []Interval) {
	result = make([]Interval, 0x30000)
	result[0].Start = 0
	result[0].End = 3
	for i := 1; i < len(result); i++ {
		if rand.Intn(100) < 20 {
			result[i].Start = result[i-1].End - 1
		} else {
			result[i].Start = result[i-1].End + 1
		}
		result[i].End = result[i].Start + 3
	}
	return result
}

func TestFlatten(t *testing.T) {
	if Flatten(nil) != nil {
		t.Error("empty Flatten failed")
	}
	if !intervalsEqual(Flatten([]Interval{{2, 3}, {3, 4}}), []Interval{{2, 4}}) {
		t.Error("Flatten 1 failed")
	}
	if !intervalsEqual(Flatten([]Interval{{2, 3}, {4, 5}}), []Interval{{2, 3}, {4, 5}}) {
		t.Error("Flatten 2 failed")
	}
	if !intervalsEqual(Flatten([]Interval{{2, 4}, {3, 5}, {4, 6}, {7, 9}}), []Interval{{2, 6}, {7, 9}}) {
		t.Error("Flatten 3 failed")
	}
	if !intervalsEqual(Flatten([]Interval{{2, 3}, {2, 5}, {2, 4}, {2, 3}, {2, 6}, {2, 7}}), []Interval{{2, 7}}) {
		t.Error("Flatten 4 failed")
	}
	intervals := Flatten(makeLargeIntervalsSlice())
	for i := 1; i < len(intervals); i++ {
		if interval := intervals[i]; interval.Start > interval.End || interval.Start <= intervals[i-1].End {
			t.Error("Flatten 5 failed")
		}
	}
}

func TestParallelFlatten(t *testing.T) {
	if ParallelFlatten(nil) != nil {
		t.Error("empty ParallelFlatten failed")
	}
	if !intervalsEqual(ParallelFlatten([]Interval{{2, 4}, {3, 5}, {4, 6}, {7, 9}}), []Interval{{2, 6}, {7, 9}}) {
		t.Error("ParallelFlatten 1 failed")
	}
	intervals := ParallelFlatten(makeLargeIntervalsSlice())
	for i := 1; i < len(intervals); i++ {
		if interval := intervals[i]; interval.Start > interval.End || interval.Start <= intervals[i-1].End {
			t.Error("ParallelFlatten 2 failed")
		}
	}
}

func TestUnionLength(t *testing.T) {
	if UnionLength(nil) != 0 {
		t.Error("empty UnionLength failed")
	}
	if l := UnionLength([]Interval{{5, 10}, {0, 3}, {8, 12}}); l != 10 {
		t.Errorf("UnionLength 1 failed: %v", l)
	}
	if l := UnionLength([]Interval{{0, 3}, {3, 6}}); l != 6 {
		t.Errorf("UnionLength 2 failed: %v", l)
	}
	input := []Interval{{5, 10}, {0, 3}}
	UnionLength(input)
	if !intervalsEqual(input, []Interval{{5, 10}, {0, 3}}) {
		t.Error("UnionLength modified its argument")
	}
}

func TestIntersection(t *testing.T) {
	if ival, ok := Intersection(Interval{0, 10}, Interval{5, 20}); !ok || ival != (Interval{5, 10}) {
		t.Error("Intersection 1 failed")
	}
	if _, ok := Intersection(Interval{0, 10}, Interval{10, 20}); ok {
		t.Error("Intersection 2 failed")
	}
	if !Contains(Interval{0, 10}, Interval{2, 8}) || Contains(Interval{0, 10}, Interval{0, 8}) {
		t.Error("Contains failed")
	}
}

func TestDepthProfile(t *testing.T) {
	reads := []Interval{{0, 10}, {2, 6}, {4, 20}}
	profile := DepthProfile(reads, 0, 12)
	for pos := 0; pos < 12; pos++ {
		if int(profile[pos]) != Depth(reads, pos) {
			t.Errorf("DepthProfile at %v: %v, expected %v", pos, profile[pos], Depth(reads, pos))
		}
	}
	if DepthProfile(reads, 5, 5) != nil {
		t.Error("empty DepthProfile failed")
	}
}
