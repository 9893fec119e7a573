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

// Package consensus computes, caches, and compares polished consensus
// sequences of read clusters.
package consensus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/exascience/elstrain/intervals"
)

// Status tells whether a consensus was computed successfully.
type Status int

const (
	Polished Status = iota
	Failed
)

func (s Status) String() string {
	if s == Polished {
		return "polished"
	}
	return "failed"
}

// Key identifies the consensus of a cluster on a unitig.
type Key struct {
	Cluster int
	Unitig  string
}

func (key Key) String() string {
	return strconv.Itoa(key.Cluster) + "-" + key.Unitig
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	cluster, unitig, ok := strings.Cut(s, "-")
	if !ok {
		return Key{}, fmt.Errorf("invalid consensus key %q", s)
	}
	id, err := strconv.Atoi(cluster)
	if err != nil {
		return Key{}, fmt.Errorf("invalid consensus key %q: %w", s, err)
	}
	return Key{Cluster: id, Unitig: unitig}, nil
}

// Record is the consensus of one cluster: the polished sequence of the
// reference span [Start, End) covered by its reads.
type Record struct {
	Sequence   []byte               `json:"sequence"`
	Start      int                  `json:"start"`
	End        int                  `json:"end"`
	ReadLimits []intervals.Interval `json:"read_limits"`
	Status     Status               `json:"status"`
}

// Span returns the reference span of the record.
func (record *Record) Span() intervals.Interval {
	return intervals.Interval{Start: record.Start, End: record.End}
}
