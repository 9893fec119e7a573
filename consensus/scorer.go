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
	"context"

	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elstrain/align"
	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/intervals"
)

// Incomparable is the score of two records without a shared span.
const Incomparable = 1

// Scorer computes the dissimilarity of two consensus records over
// their shared reference span.
type Scorer struct {
	Aligner align.Aligner
	// Alignment columns where either cluster has fewer reads than
	// CoverageFloor are treated as matches.
	CoverageFloor int
	// Indel runs shorter than IndelLeniency are not counted.
	IndelLeniency int
}

// less orders records so that Distance does not depend on argument
// order.
func less(a, b *Record) bool {
	switch {
	case a.Start != b.Start:
		return a.Start < b.Start
	case a.End != b.End:
		return a.End < b.End
	case len(a.Sequence) != len(b.Sequence):
		return len(a.Sequence) < len(b.Sequence)
	}
	return bytes.Compare(a.Sequence, b.Sequence) < 0
}

func clip(record *Record, from, to int) []byte {
	lo := max(0, from-record.Start)
	hi := min(len(record.Sequence), to-record.Start)
	if lo >= hi {
		return nil
	}
	return record.Sequence[lo:hi]
}

// Distance aligns the consensus sequences of a and b clipped to the
// intersection of their spans and returns the number of differences.
// It returns Incomparable and false if the records cannot be compared.
func (s Scorer) Distance(a, b *Record) (int, bool) {
	if less(b, a) {
		a, b = b, a
	}
	overlap, ok := intervals.Intersection(a.Span(), b.Span())
	if !ok {
		return Incomparable, false
	}
	first, second := clip(a, overlap.Start, overlap.End), clip(b, overlap.Start, overlap.End)
	if len(first) == 0 || len(second) == 0 {
		return Incomparable, false
	}
	trace := s.Aligner.Align(first, second)
	return s.score(trace, overlap.Start, a.ReadLimits, b.ReadLimits), true
}

func (s Scorer) lowCoverage(n, start int, first, second []intervals.Interval) *bitset.BitSet {
	mask := bitset.New(uint(n))
	floor := int32(s.CoverageFloor)
	depth1 := intervals.DepthProfile(first, start, start+n)
	depth2 := intervals.DepthProfile(second, start, start+n)
	for i := 0; i < n; i++ {
		if depth1[i] < floor || depth2[i] < floor {
			mask.Set(uint(i))
		}
	}
	return mask
}

// score walks an alignment trace whose column i corresponds to
// reference position start+i.
func (s Scorer) score(trace []byte, start int, first, second []intervals.Interval) (score int) {
	n := len(trace)
	if n == 0 {
		return 0
	}
	mask := s.lowCoverage(n, start, first, second)
	column := func(i int) byte {
		if c := trace[i]; c != align.Match && !mask.Test(uint(i)) {
			return c
		}
		return align.Match
	}
	for i := 0; i < n; {
		switch column(i) {
		case align.Mismatch:
			score++
			i++
		case align.Gap:
			j := i
			for j < n && column(j) == align.Gap {
				j++
			}
			if run := j - i; run >= s.IndelLeniency && i > 0 && j < n {
				score += run
			}
			i = j
		default:
			i++
		}
	}
	return score
}

// ClusterDistance compares clusters by the consensus sequences in a
// Cache.
type ClusterDistance struct {
	Cache  *Cache
	Scorer Scorer
}

// Distance implements clustering.Distancer.
func (d ClusterDistance) Distance(ctx context.Context, unitig string, a, b clustering.Members) (int, bool) {
	first := d.Cache.Get(ctx, Key{Cluster: a.ID, Unitig: unitig}, a.Reads)
	second := d.Cache.Get(ctx, Key{Cluster: b.ID, Unitig: unitig}, b.Reads)
	return d.Scorer.Distance(first, second)
}
