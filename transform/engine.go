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

// Package transform rewrites an assembly graph from the per-unitig
// clustering results: every unitig with clusters is replaced by child
// segments, one per haplotype, which are linked within the unitig and
// across unitig boundaries.
package transform

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/config"
	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/reads"
)

// State is the progress of one unitig through the transformation.
type State int

// The states of a unitig.
const (
	NoClusters State = iota
	SingleCluster
	MultiCluster
	PathsResolved
	Linked
	Cleaned
)

var stateNames = [...]string{"no clusters", "single cluster", "multi cluster", "paths resolved", "linked", "cleaned"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Consensus provides the consensus record of a cluster.
type Consensus interface {
	Get(ctx context.Context, key consensus.Key, members []string) *consensus.Record
}

// Engine transforms one assembly graph. An Engine is not safe for
// concurrent use.
type Engine struct {
	Graph       *gfa.Graph
	Consensus   Consensus
	Distancer   clustering.Distancer
	Loader      reads.Loader
	ClustersDir string
	Params      config.Params
	Logger      *slog.Logger

	// StatsOut receives one line per unitig with the number of full,
	// path and other clusters. It may be nil.
	StatsOut io.Writer

	units map[string]*unitig
}

type unitig struct {
	name   string
	length int
	state  State

	set        *reads.Set
	hasTable   bool
	assignment clustering.Assignment
	members    map[int][]string
	stats      clustering.StatsTable
	clusters   []int

	// clusters that are linked across unitig boundaries, and those
	// among them that start or end the unitig
	link, src, sink []int
	removed         bool

	full, path, other int
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// State returns the state reached by the named unitig.
func (e *Engine) State(name string) State {
	if u, ok := e.units[name]; ok {
		return u.state
	}
	return NoClusters
}

func childName(unitig string, cluster int) string {
	return fmt.Sprintf("%v_%v", unitig, cluster)
}

// Run transforms the graph for the given unitigs. Child segments are
// created for all unitigs first, then linked, before the replaced
// unitigs are removed and the graph is cleaned.
func (e *Engine) Run(ctx context.Context, unitigs []string) error {
	logger := e.logger()
	e.units = make(map[string]*unitig, len(unitigs))
	if e.StatsOut != nil {
		if _, err := fmt.Fprintln(e.StatsOut, "Edge\tFull Clusters\tFull Paths Clusters\tOther Clusters"); err != nil {
			return fmt.Errorf("writing cluster statistics: %w", err)
		}
	}

	logger.Info("creating unitigs")
	for _, name := range unitigs {
		u, err := e.prepare(name)
		if err != nil {
			return err
		}
		e.units[name] = u
		switch len(u.clusters) {
		case 0:
		case 1:
			e.splitSingle(u)
		default:
			e.splitMulti(ctx, u)
		}
		logger.Info("unitigs created", "unitig", name, "state", u.state, "count", u.full+u.path)
		if e.StatsOut != nil {
			if _, err := fmt.Fprintf(e.StatsOut, "%v\t%v\t%v\t%v\n", name, u.full, u.path, u.other); err != nil {
				return fmt.Errorf("writing cluster statistics: %w", err)
			}
		}
	}

	logger.Info("linking unitigs")
	for _, name := range unitigs {
		e.linkUnitig(e.units[name])
	}
	e.connectParental(unitigs)

	logger.Info("removing initial segments")
	for _, name := range unitigs {
		if u := e.units[name]; u.removed {
			if e.Graph.RemoveSegment(name) {
				logger.Debug("removed segment", "unitig", name)
			}
		}
	}
	stats := e.Graph.Clean()
	logger.Debug("cleaned graph", "self-links", stats.SelfLinks, "paths", stats.Paths, "placeholders", stats.Placeholders)
	for _, u := range e.units {
		if u.state != NoClusters {
			u.state = Cleaned
		}
	}
	return nil
}

// prepare loads the reads and the clustering table of a unitig and
// sets the depth of its segment.
func (e *Engine) prepare(name string) (*unitig, error) {
	u := &unitig{name: name}
	segment, ok := e.Graph.Segment(name)
	if !ok {
		e.logger().Warn("unitig not in assembly graph", "unitig", name)
		return u, nil
	}
	set, err := e.Loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("loading reads of %v: %w", name, err)
	}
	u.set = set
	u.length = set.Length
	if u.length <= 0 {
		u.length = len(segment.Sequence)
	}
	segment.Depth = set.MeanDepth()

	table, found, err := clustering.ReadTable(e.ClustersDir, name)
	if err != nil {
		return nil, fmt.Errorf("reading clusters of %v: %w", name, err)
	}
	if !found {
		e.logger().Debug("no clusters", "unitig", name)
		return u, nil
	}
	u.hasTable = true
	u.assignment = make(clustering.Assignment, len(table.Assignment))
	unclustered := 0
	for read, id := range table.Assignment {
		u.assignment[read] = id
		if id == clustering.Unclustered {
			unclustered++
		}
	}
	if unclustered > e.Params.UnclusteredMinReads {
		for read, id := range u.assignment {
			if id == clustering.Unclustered {
				u.assignment[read] = e.Params.UnclusteredClusterID
			}
		}
	}
	u.members = u.assignment.Members()
	u.stats = clustering.ComputeStats(set, u.assignment)
	for _, id := range u.assignment.Clusters() {
		if _, ok := u.stats[id]; !ok {
			stats, ok := table.Stats[id]
			if !ok {
				continue
			}
			u.stats[id] = stats
		}
		u.clusters = append(u.clusters, id)
	}
	return u, nil
}
