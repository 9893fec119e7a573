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

package gfa

import (
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// HopIndex answers shortest path queries on the undirected segment
// graph, ignoring orientation.
type HopIndex struct {
	g   *simple.UndirectedGraph
	ids map[string]int64
}

// HopIndex snapshots the current graph topology.
func (g *Graph) HopIndex() *HopIndex {
	h := &HopIndex{g: simple.NewUndirectedGraph(), ids: make(map[string]int64, len(g.order))}
	for i, name := range g.order {
		h.ids[name] = int64(i)
		h.g.AddNode(simple.Node(i))
	}
	for _, l := range g.links {
		if l.From == l.To {
			continue
		}
		h.g.SetEdge(simple.Edge{F: simple.Node(h.ids[l.From]), T: simple.Node(h.ids[l.To])})
	}
	return h
}

// Distances holds shortest paths from one segment.
type Distances struct {
	index    *HopIndex
	source   int64
	shortest path.Shortest
	ok       bool
}

// From computes shortest paths from source.
func (h *HopIndex) From(source string) Distances {
	id, ok := h.ids[source]
	if !ok {
		return Distances{index: h}
	}
	return Distances{index: h, source: id, shortest: path.DijkstraFrom(h.g.Node(id), h.g), ok: true}
}

// PathNodes returns the number of segments on a shortest path from the
// source to target, both included, and false if target is unreachable.
func (d Distances) PathNodes(target string) (int, bool) {
	if !d.ok {
		return 0, false
	}
	id, ok := d.index.ids[target]
	if !ok {
		return 0, false
	}
	if id == d.source {
		return 1, true
	}
	nodes, _ := d.shortest.To(id)
	if len(nodes) == 0 {
		return 0, false
	}
	return len(nodes), true
}
