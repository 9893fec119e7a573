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

package consensus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exascience/elstrain/align"
	"github.com/exascience/elstrain/intervals"
)

// Sequences over A, C, and T only, so that inserted G runs can only be
// aligned as gaps.
const (
	left  = "ACTTACATCCATTACCTAACTCATTCACATTCAACTCTAC"
	right = "CTATTCAACACTTCATACCTTACACTATCCATCACTTAAC"
)

func wellCovered(n int) []intervals.Interval {
	limits := make([]intervals.Interval, n)
	for i := range limits {
		limits[i] = intervals.Interval{Start: -10, End: 1000}
	}
	return limits
}

func record(seq string, start, end int, coverage int) *Record {
	return &Record{Sequence: []byte(seq), Start: start, End: end, ReadLimits: wellCovered(coverage)}
}

func testScorer() Scorer {
	return Scorer{Aligner: align.NewBanded(20), CoverageFloor: 3, IndelLeniency: 5}
}

func TestDistanceIdentical(t *testing.T) {
	seq := left + right
	distance, ok := testScorer().Distance(record(seq, 0, len(seq), 5), record(seq, 0, len(seq), 5))
	assert.True(t, ok)
	assert.Equal(t, 0, distance)
}

func TestDistanceIndelLeniency(t *testing.T) {
	s := testScorer()
	base := record(left+right, 0, 100, 5)
	for _, test := range []struct {
		name     string
		seq      string
		expected int
	}{
		{"short run", left + "GGGG" + right, 0},
		{"long run", left + "GGGGGG" + right, 6},
		{"leading run", "GGGGGG" + left + right, 0},
		{"trailing run", left + right + "GGGGGG", 0},
	} {
		t.Run(test.name, func(t *testing.T) {
			distance, ok := s.Distance(record(test.seq, 0, 100, 5), base)
			assert.True(t, ok)
			assert.Equal(t, test.expected, distance)
		})
	}
}

func TestDistanceMismatches(t *testing.T) {
	a := record(left+"C"+right+"T", 0, 82, 5)
	b := record(left+"A"+right+"A", 0, 82, 5)
	distance, ok := testScorer().Distance(a, b)
	assert.True(t, ok)
	assert.Equal(t, 2, distance)
}

func TestDistanceCoverageMasking(t *testing.T) {
	a := record(left+"C"+right+"GGGGGG"+left, 0, 200, 5)
	b := record(left+"A"+right+left, 0, 200, 2)
	distance, ok := testScorer().Distance(a, b)
	assert.True(t, ok)
	assert.Equal(t, 0, distance)

	b.ReadLimits = wellCovered(3)
	distance, ok = testScorer().Distance(a, b)
	assert.True(t, ok)
	assert.Equal(t, 7, distance)
}

func TestScoreMasksSingleColumn(t *testing.T) {
	trace := bytes.Repeat([]byte{align.Match}, 20)
	trace[5] = align.Mismatch
	trace[12] = align.Mismatch
	first := []intervals.Interval{{Start: 90, End: 130}, {Start: 90, End: 130}, {Start: 90, End: 130}}
	// positions 104 to 106 are covered by two reads only
	second := []intervals.Interval{{Start: 90, End: 130}, {Start: 90, End: 130}, {Start: 90, End: 104}, {Start: 106, End: 130}}

	s := testScorer()
	assert.Equal(t, 1, s.score(trace, 100, first, second))
	assert.Equal(t, 1, s.score(trace, 100, second, first))

	second[2].End = 130
	assert.Equal(t, 2, s.score(trace, 100, first, second))
}

func TestDistanceOrderIndependence(t *testing.T) {
	a := record(left+"C"+right+"GGGGGGG"+left, 0, 150, 4)
	b := record(strings.Replace(left, "ACTT", "AGTT", 1)+"A"+right+left, 20, 160, 6)
	d1, ok1 := testScorer().Distance(a, b)
	d2, ok2 := testScorer().Distance(b, a)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, d1, d2)
}

func TestDistanceIncomparable(t *testing.T) {
	s := testScorer()
	distance, ok := s.Distance(record(left, 0, 40, 5), record(right, 40, 80, 5))
	assert.False(t, ok)
	assert.Equal(t, 1, distance)

	failed := &Record{Start: 0, End: 40, Status: Failed}
	distance, ok = s.Distance(record(left, 0, 40, 5), failed)
	assert.False(t, ok)
	assert.Equal(t, 1, distance)
}
