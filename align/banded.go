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

// Package align computes global pairwise alignments of consensus
// sequences.
package align

import (
	"math"
	"sync"
)

// Trace symbols.
const (
	Match    = '|'
	Mismatch = '.'
	Gap      = '-'
)

// Scoring values of the global alignment.
const (
	MatchValue      int32 = 1
	MismatchPenalty int32 = -1
	GapPenalty      int32 = -1
)

// DefaultPadding is the band padding used when none is configured.
const DefaultPadding = 100

// An Aligner produces one optimal global alignment of a and b,
// rendered as a trace of Match, Mismatch, and Gap symbols.
type Aligner interface {
	Align(a, b []byte) []byte
}

// Banded is a Needleman-Wunsch aligner restricted to a diagonal band
// that always contains both corners of the matrix. Padding widens the
// band on either side of the corners' diagonals.
type Banded struct {
	Padding int
}

// NewBanded returns a banded aligner with the given padding.
func NewBanded(padding int) Banded {
	if padding < 1 {
		padding = DefaultPadding
	}
	return Banded{Padding: padding}
}

const (
	fromDiag byte = iota + 1
	fromUp
	fromLeft
)

type bandMatrices struct {
	prev, cur []int32
	backtrack []byte
}

var bandMatricesPool = sync.Pool{New: func() interface{} { return &bandMatrices{} }}

func getBandMatrices() *bandMatrices {
	return bandMatricesPool.Get().(*bandMatrices)
}

func putBandMatrices(m *bandMatrices) {
	bandMatricesPool.Put(m)
}

func ensureVector(v []int32, sz int, initValue int32) (result []int32) {
	if sz <= cap(v) {
		result = v[:sz]
	} else {
		result = make([]int32, sz)
	}
	for i := range result {
		result[i] = initValue
	}
	return
}

func ensureBytes(v []byte, sz int) (result []byte) {
	if sz <= cap(v) {
		result = v[:sz]
		for i := range result {
			result[i] = 0
		}
		return result
	}
	return make([]byte, sz)
}

const lowInitValue = math.MinInt32 / 2

// Align implements Aligner.
func (b Banded) Align(x, y []byte) []byte {
	lx, ly := len(x), len(y)
	padding := b.Padding
	if padding < 1 {
		padding = DefaultPadding
	}
	dlo := min(0, ly-lx) - padding
	dhi := max(0, ly-lx) + padding
	width := dhi - dlo + 1

	m := getBandMatrices()
	defer putBandMatrices(m)

	m.prev = ensureVector(m.prev, width, lowInitValue)
	m.cur = ensureVector(m.cur, width, lowInitValue)
	m.backtrack = ensureBytes(m.backtrack, (lx+1)*width)

	for k := 0; k < width; k++ {
		j := k + dlo
		if j < 0 {
			continue
		}
		if j > ly {
			break
		}
		m.prev[k] = int32(-j)
		if j > 0 {
			m.backtrack[k] = fromLeft
		}
	}

	for i := 1; i <= lx; i++ {
		cur := m.cur
		for k := range cur {
			cur[k] = lowInitValue
		}
		row := m.backtrack[i*width : (i+1)*width]
		xBase := x[i-1]
		for k := 0; k < width; k++ {
			j := i + dlo + k
			if j < 0 {
				continue
			}
			if j > ly {
				break
			}
			if j == 0 {
				cur[k] = int32(-i)
				row[k] = fromUp
				continue
			}
			best, dir := int32(lowInitValue), byte(0)
			if s := m.prev[k]; s > lowInitValue {
				if xBase == y[j-1] {
					s += MatchValue
				} else {
					s += MismatchPenalty
				}
				best, dir = s, fromDiag
			}
			if k+1 < width {
				if s := m.prev[k+1]; s > lowInitValue {
					if s += GapPenalty; s > best {
						best, dir = s, fromUp
					}
				}
			}
			if k > 0 {
				if s := cur[k-1]; s > lowInitValue {
					if s += GapPenalty; s > best {
						best, dir = s, fromLeft
					}
				}
			}
			cur[k] = best
			row[k] = dir
		}
		m.prev, m.cur = cur, m.prev
	}

	trace := make([]byte, 0, max(lx, ly))
	for i, j := lx, ly; i > 0 || j > 0; {
		switch m.backtrack[i*width+j-i-dlo] {
		case fromDiag:
			if x[i-1] == y[j-1] {
				trace = append(trace, Match)
			} else {
				trace = append(trace, Mismatch)
			}
			i--
			j--
		case fromUp:
			trace = append(trace, Gap)
			i--
		case fromLeft:
			trace = append(trace, Gap)
			j--
		default:
			panic("unreachable alignment cell")
		}
	}
	for l, r := 0, len(trace)-1; l < r; l, r = l+1, r-1 {
		trace[l], trace[r] = trace[r], trace[l]
	}
	return trace
}

// Score returns the alignment score of a trace.
func Score(trace []byte) (score int32) {
	for _, c := range trace {
		switch c {
		case Match:
			score += MatchValue
		case Mismatch:
			score += MismatchPenalty
		default:
			score += GapPenalty
		}
	}
	return score
}
