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
	"strconv"
	"strings"
)

var complement = [256]byte{}

func init() {
	for i := range complement {
		complement[i] = 'N'
	}
	for _, pair := range []string{"AT", "CG", "GC", "TA", "at", "cg", "gc", "ta", "NN", "nn"} {
		complement[pair[0]] = pair[1]
	}
}

// ReverseComplement returns the reverse complement of seq.
func ReverseComplement(seq []byte) []byte {
	result := make([]byte, len(seq))
	for i, c := range seq {
		result[len(seq)-1-i] = complement[c]
	}
	return result
}

// segmentEnd is one of the two ends of a segment: the end of its
// forward strand if right is set, its start otherwise.
type segmentEnd struct {
	segment string
	right   bool
}

func linkEnds(l Link) (from, to segmentEnd) {
	return segmentEnd{l.From, l.FromOrient == Forward}, segmentEnd{l.To, l.ToOrient == Reverse}
}

func endLink(from, to segmentEnd, template Link) Link {
	l := template
	l.From, l.To = from.segment, to.segment
	l.FromOrient, l.ToOrient = Reverse, Reverse
	if from.right {
		l.FromOrient = Forward
	}
	if !to.right {
		l.ToOrient = Forward
	}
	return l
}

type oriented struct {
	segment     string
	orientation string
}

func (o oriented) exit() segmentEnd {
	return segmentEnd{o.segment, o.orientation == Forward}
}

func (o oriented) entry() segmentEnd {
	return segmentEnd{o.segment, o.orientation == Reverse}
}

func (g *Graph) linksAt(e segmentEnd) (result []Link) {
	for _, l := range g.LinksOf(e.segment) {
		from, to := linkEnds(l)
		if from == e || to == e {
			result = append(result, l)
		}
	}
	return result
}

// next follows the only link at the exit of o if the segment on the
// other side has no other link at that end.
func (g *Graph) next(o oriented) (oriented, Link, bool) {
	exit := o.exit()
	links := g.linksAt(exit)
	if len(links) != 1 {
		return oriented{}, Link{}, false
	}
	l := links[0]
	from, to := linkEnds(l)
	other := to
	if to == exit {
		other = from
	}
	if other.segment == o.segment || len(g.linksAt(other)) != 1 {
		return oriented{}, Link{}, false
	}
	orientation := Forward
	if other.right {
		orientation = Reverse
	}
	return oriented{other.segment, orientation}, l, true
}

func overlapLength(cigar string) int {
	if n, err := strconv.Atoi(strings.TrimSuffix(cigar, "M")); err == nil && n > 0 {
		return n
	}
	return 0
}

func (g *Graph) orientedSequence(o oriented) []byte {
	seq := g.segments[o.segment].Sequence
	if o.orientation == Reverse {
		return ReverseComplement(seq)
	}
	return seq
}

// chain returns the maximal unbranched walk through name.
func (g *Graph) chain(name string) (steps []oriented, links []Link) {
	seen := map[string]bool{name: true}
	current := oriented{name, Reverse}
	for {
		n, _, ok := g.next(current)
		if !ok || seen[n.segment] {
			break
		}
		seen[n.segment] = true
		current = n
	}
	start := oriented{current.segment, Flip(current.orientation)}
	steps = []oriented{start}
	seen = map[string]bool{start.segment: true}
	for {
		n, l, ok := g.next(steps[len(steps)-1])
		if !ok || seen[n.segment] {
			break
		}
		seen[n.segment] = true
		steps = append(steps, n)
		links = append(links, l)
	}
	return steps, links
}

// MergeLinearPaths merges every unbranched chain of segments into a
// single segment named after its members joined by "_". Sequences are
// joined in chain orientation with link overlaps removed, and the depth
// is the length-weighted mean of the members. It returns the number of
// merged chains.
func (g *Graph) MergeLinearPaths() (merged int) {
	visited := make(map[string]bool)
	for _, name := range append([]string(nil), g.order...) {
		if visited[name] {
			continue
		}
		if _, ok := g.segments[name]; !ok {
			continue
		}
		steps, links := g.chain(name)
		for _, step := range steps {
			visited[step.segment] = true
		}
		if len(steps) < 2 {
			continue
		}
		g.mergeChain(steps, links)
		merged++
	}
	return merged
}

func (g *Graph) mergeChain(steps []oriented, links []Link) {
	names := make([]string, len(steps))
	var sequence []byte
	var weighted, total float64
	for i, step := range steps {
		names[i] = step.segment
		seq := g.orientedSequence(step)
		if i > 0 {
			seq = seq[min(len(seq), overlapLength(links[i-1].Overlap)):]
		}
		sequence = append(sequence, seq...)
		s := g.segments[step.segment]
		weighted += s.Depth * float64(len(s.Sequence))
		total += float64(len(s.Sequence))
	}
	segment := Segment{Name: strings.Join(names, "_"), Sequence: sequence}
	if total > 0 {
		segment.Depth = weighted / total
	}

	leftEnd, rightEnd := steps[0].entry(), steps[len(steps)-1].exit()
	external := append(g.linksAt(leftEnd), g.linksAt(rightEnd)...)
	for _, step := range steps {
		g.RemoveSegment(step.segment)
	}
	g.AddSegment(segment)
	mapEnd := func(e segmentEnd) segmentEnd {
		switch e {
		case leftEnd:
			return segmentEnd{segment.Name, false}
		case rightEnd:
			return segmentEnd{segment.Name, true}
		}
		return e
	}
	for _, l := range external {
		from, to := linkEnds(l)
		g.AddLink(endLink(mapEnd(from), mapEnd(to), l))
	}
}
