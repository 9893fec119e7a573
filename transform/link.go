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

package transform

import (
	"slices"

	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/reads"
)

// Weights of links that are not backed by a read count.
const (
	unclusteredWeight = 555
	fallbackWeight    = 666
	parentalWeight    = 888
)

type orientations struct {
	from, to string
}

func clipOrientations(clip reads.ClipLink, right bool) orientations {
	if right {
		return orientations{gfa.Forward, clip.Orientation}
	}
	return orientations{gfa.Reverse, gfa.Flip(clip.Orientation)}
}

func (e *Engine) addLink(from, fromOrient, to, toOrient string, weight int) {
	if e.Graph.AddLink(gfa.Link{From: from, FromOrient: fromOrient, To: to, ToOrient: toOrient, Weight: weight}) {
		e.logger().Debug("link added", "from", from+fromOrient, "to", to+toOrient, "weight", weight)
	}
}

// linkUnitig links the child segments of a unitig to the unitigs that
// split reads of their clusters continue into.
func (e *Engine) linkUnitig(u *unitig) {
	if len(u.link) == 0 {
		return
	}
	distances := e.Graph.HopIndex().From(u.name)
	clusters := slices.Clone(u.link)
	slices.Sort(clusters)
	for _, id := range slices.Compact(clusters) {
		child := childName(u.name, id)
		if _, ok := e.Graph.Segment(child); !ok {
			continue
		}
		neighbours := make(map[string]string)
		orient := make(map[string]orientations)
		for _, name := range u.members[id] {
			read, ok := u.set.Lookup(name)
			if !ok {
				continue
			}
			visit := func(clip reads.ClipLink, right bool) {
				if hops, ok := distances.PathNodes(clip.Unitig); ok && hops <= e.Params.MaxHops {
					neighbours[name] = clip.Unitig
				}
				orient[clip.Unitig] = clipOrientations(clip, right)
			}
			for _, clip := range read.RightClips {
				visit(clip, true)
			}
			for _, clip := range read.LeftClips {
				visit(clip, false)
			}
		}

		counts := make(map[string]int)
		for _, next := range neighbours {
			counts[next]++
		}
		targets := make([]string, 0, len(counts))
		for next, count := range counts {
			if count >= e.Params.MinReadsNeighbour {
				targets = append(targets, next)
			}
		}
		slices.Sort(targets)
		for _, next := range targets {
			e.linkTarget(u, id, next, orient[next], neighbours)
		}
		if u.state < Linked {
			u.state = Linked
		}
	}
}

func (e *Engine) linkTarget(u *unitig, id int, next string, o orientations, neighbours map[string]string) {
	child := childName(u.name, id)
	target, ok := e.units[next]
	if !ok || !target.hasTable {
		e.addLink(child, o.from, next, o.to, unclusteredWeight)
		return
	}

	counts := make(map[int]int)
	for read, adjacent := range neighbours {
		if adjacent != next {
			continue
		}
		if cluster, ok := target.assignment[read]; ok {
			counts[cluster]++
		}
	}
	connected := make([]int, 0, len(counts))
	for cluster, count := range counts {
		if count >= e.Params.MinReadsCluster {
			connected = append(connected, cluster)
		}
	}
	slices.Sort(connected)
	added := false
	for _, cluster := range connected {
		name := childName(next, cluster)
		if _, ok := e.Graph.Segment(name); ok {
			e.addLink(child, o.from, name, o.to, counts[cluster])
			added = true
		}
	}
	if added {
		return
	}

	if !target.removed {
		e.addLink(child, o.from, next, o.to, fallbackWeight)
		return
	}
	var rewire []int
	inSink, inSrc := slices.Contains(u.sink, id), slices.Contains(u.src, id)
	switch {
	case inSink && inSrc:
		if o.to == gfa.Forward {
			rewire = target.src
		} else {
			rewire = target.sink
		}
	case inSink:
		rewire = target.src
	case inSrc:
		rewire = target.sink
	}
	for _, cluster := range rewire {
		name := childName(next, cluster)
		if _, ok := e.Graph.Segment(name); ok {
			e.addLink(child, o.from, name, o.to, fallbackWeight)
		}
	}
}

// connectParental links every kept unitig to the start and end
// clusters of its split neighbors, where those clusters are tips.
func (e *Engine) connectParental(unitigs []string) {
	sources := func(name string) []int {
		if u, ok := e.units[name]; ok {
			return u.src
		}
		return nil
	}
	sinks := func(name string) []int {
		if u, ok := e.units[name]; ok {
			return u.sink
		}
		return nil
	}
	for _, name := range unitigs {
		if u, ok := e.units[name]; !ok || u.removed {
			continue
		}
		for _, link := range e.Graph.Links() {
			if link.From == name {
				connect := sinks(link.To)
				if link.ToOrient == gfa.Forward {
					connect = sources(link.To)
				}
				for _, cluster := range connect {
					candidate := childName(link.To, cluster)
					if e.Graph.IsTip(candidate, gfa.Flip(link.ToOrient)) {
						e.addLink(link.From, link.FromOrient, candidate, link.ToOrient, parentalWeight)
					}
				}
			}
			if link.To == name {
				connect := sources(link.From)
				if link.FromOrient == gfa.Forward {
					connect = sinks(link.From)
				}
				for _, cluster := range connect {
					candidate := childName(link.From, cluster)
					if e.Graph.IsTip(candidate, link.FromOrient) {
						e.addLink(candidate, link.FromOrient, link.To, link.ToOrient, parentalWeight)
					}
				}
			}
		}
	}
}
