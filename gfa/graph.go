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

// Package gfa is an in-memory assembly graph with GFA1 segments, links,
// and paths.
package gfa

import (
	"sort"
)

// Orientations of segments in links and paths.
const (
	Forward = "+"
	Reverse = "-"
)

// Flip returns the opposite orientation.
func Flip(orientation string) string {
	if orientation == Forward {
		return Reverse
	}
	return Forward
}

// A Segment is a named sequence with a read depth.
type Segment struct {
	Name     string
	Sequence []byte
	Depth    float64
}

// A Link connects the end of one oriented segment to the start of
// another.
type Link struct {
	From       string
	FromOrient string
	To         string
	ToOrient   string
	Overlap    string
	Weight     int
}

// A Path is an ordered walk over oriented segments, such as "u1+".
type Path struct {
	Name     string
	Segments []string
	Overlaps []string
}

type linkKey struct {
	from, fromOrient, to, toOrient string
}

func (k linkKey) less(o linkKey) bool {
	if k.from != o.from {
		return k.from < o.from
	}
	if k.fromOrient != o.fromOrient {
		return k.fromOrient < o.fromOrient
	}
	if k.to != o.to {
		return k.to < o.to
	}
	return k.toOrient < o.toOrient
}

// key returns the same value for a link and its reverse complement.
func (link Link) key() linkKey {
	k := linkKey{link.From, link.FromOrient, link.To, link.ToOrient}
	r := linkKey{link.To, Flip(link.ToOrient), link.From, Flip(link.FromOrient)}
	if r.less(k) {
		return r
	}
	return k
}

// Graph is a mutable assembly graph.
type Graph struct {
	segments map[string]*Segment
	order    []string
	links    map[linkKey]*Link
	incident map[string]map[linkKey]bool
	paths    []Path
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		segments: make(map[string]*Segment),
		links:    make(map[linkKey]*Link),
		incident: make(map[string]map[linkKey]bool),
	}
}

// AddSegment adds a segment. It returns false if a segment with the
// same name exists.
func (g *Graph) AddSegment(segment Segment) bool {
	if _, ok := g.segments[segment.Name]; ok {
		return false
	}
	s := segment
	g.segments[s.Name] = &s
	g.order = append(g.order, s.Name)
	return true
}

// Segment returns the named segment.
func (g *Graph) Segment(name string) (*Segment, bool) {
	s, ok := g.segments[name]
	return s, ok
}

// Segments returns all segments in insertion order.
func (g *Graph) Segments() []*Segment {
	result := make([]*Segment, len(g.order))
	for i, name := range g.order {
		result[i] = g.segments[name]
	}
	return result
}

// Sequences returns a snapshot of all segment sequences by name.
func (g *Graph) Sequences() map[string][]byte {
	result := make(map[string][]byte, len(g.segments))
	for name, s := range g.segments {
		result[name] = s.Sequence
	}
	return result
}

// RemoveSegment removes a segment together with its links and the
// paths that visit it. It returns false if there is no such segment.
func (g *Graph) RemoveSegment(name string) bool {
	if _, ok := g.segments[name]; !ok {
		return false
	}
	for key := range g.incident[name] {
		g.removeKey(key)
	}
	delete(g.incident, name)
	delete(g.segments, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	paths := g.paths[:0]
	for _, path := range g.paths {
		visits := false
		for _, step := range path.Segments {
			if len(step) > 0 && step[:len(step)-1] == name {
				visits = true
				break
			}
		}
		if !visits {
			paths = append(paths, path)
		}
	}
	g.paths = paths
	return true
}

// AddLink adds a link between existing segments. It returns false if
// a segment is missing or the link, or its reverse complement, is
// already present.
func (g *Graph) AddLink(link Link) bool {
	if _, ok := g.segments[link.From]; !ok {
		return false
	}
	if _, ok := g.segments[link.To]; !ok {
		return false
	}
	key := link.key()
	if _, ok := g.links[key]; ok {
		return false
	}
	if link.Overlap == "" {
		link.Overlap = "0M"
	}
	l := link
	g.links[key] = &l
	for _, name := range []string{link.From, link.To} {
		if g.incident[name] == nil {
			g.incident[name] = make(map[linkKey]bool)
		}
		g.incident[name][key] = true
	}
	return true
}

func (g *Graph) removeKey(key linkKey) bool {
	link, ok := g.links[key]
	if !ok {
		return false
	}
	delete(g.links, key)
	delete(g.incident[link.From], key)
	delete(g.incident[link.To], key)
	return true
}

// RemoveLink removes a link, given in either direction. It returns
// false if there is no such link.
func (g *Graph) RemoveLink(link Link) bool {
	return g.removeKey(link.key())
}

func sortLinks(links []Link) []Link {
	sort.Slice(links, func(i, j int) bool {
		return linkKey{links[i].From, links[i].FromOrient, links[i].To, links[i].ToOrient}.less(
			linkKey{links[j].From, links[j].FromOrient, links[j].To, links[j].ToOrient})
	})
	return links
}

// Links returns all links in a deterministic order.
func (g *Graph) Links() []Link {
	links := make([]Link, 0, len(g.links))
	for _, link := range g.links {
		links = append(links, *link)
	}
	return sortLinks(links)
}

// LinksOf returns the links incident to a segment.
func (g *Graph) LinksOf(name string) []Link {
	links := make([]Link, 0, len(g.incident[name]))
	for key := range g.incident[name] {
		links = append(links, *g.links[key])
	}
	return sortLinks(links)
}

// DovetailsR returns the links attached to the end of the forward
// strand of a segment.
func (g *Graph) DovetailsR(name string) []Link {
	var result []Link
	for _, link := range g.LinksOf(name) {
		if (link.From == name && link.FromOrient == Forward) || (link.To == name && link.ToOrient == Reverse) {
			result = append(result, link)
		}
	}
	return result
}

// DovetailsL returns the links attached to the start of the forward
// strand of a segment.
func (g *Graph) DovetailsL(name string) []Link {
	var result []Link
	for _, link := range g.LinksOf(name) {
		if (link.From == name && link.FromOrient == Reverse) || (link.To == name && link.ToOrient == Forward) {
			result = append(result, link)
		}
	}
	return result
}

// IsTip reports whether a segment has no links at its end in the
// given orientation: the forward end for Forward, the start for
// Reverse. Missing segments are no tips.
func (g *Graph) IsTip(name, orientation string) bool {
	if _, ok := g.segments[name]; !ok {
		return false
	}
	if orientation == Forward {
		return len(g.DovetailsR(name)) == 0
	}
	return len(g.DovetailsL(name)) == 0
}

// AddPath adds a path.
func (g *Graph) AddPath(path Path) {
	g.paths = append(g.paths, path)
}

// Paths returns all paths.
func (g *Graph) Paths() []Path {
	return g.paths
}

// CleanStats counts the changes made by Clean.
type CleanStats struct {
	SelfLinks, Paths, Placeholders int
}

// Clean removes self links and paths, and replaces empty sequences by
// a single base. Cleaning a clean graph changes nothing.
func (g *Graph) Clean() (stats CleanStats) {
	for key, link := range g.links {
		if link.From == link.To {
			g.removeKey(key)
			stats.SelfLinks++
		}
	}
	stats.Paths = len(g.paths)
	g.paths = nil
	for _, name := range g.order {
		if s := g.segments[name]; len(s.Sequence) == 0 {
			s.Sequence = []byte("A")
			stats.Placeholders++
		}
	}
	return stats
}
