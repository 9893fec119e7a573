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

package clustering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exascience/elstrain/reads"
)

// DefaultCluster is the id given to all reads of a unitig without
// informative positions.
const DefaultCluster = 1

// Phaser runs the clustering pipeline of one unitig.
type Phaser struct {
	Loader        reads.Loader
	Adjacency     AdjacencyOptions
	Clusterer     Clusterer
	Postprocessor Postprocessor
	Logger        *slog.Logger
}

// Unitig loads the reads of unitig, clusters them, and refines the
// clusters. It also returns the loaded read set.
func (p Phaser) Unitig(ctx context.Context, unitig string) (Table, *reads.Set, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	table := Table{Unitig: unitig, Assignment: make(Assignment), Stats: make(StatsTable)}
	set, err := p.Loader.Load(unitig)
	if err != nil {
		return table, nil, fmt.Errorf("loading reads of %v: %w", unitig, err)
	}
	if len(set.Reads) == 0 {
		logger.Info("no reads", "unitig", unitig)
		return table, set, nil
	}
	if len(set.Positions) == 0 {
		for i := range set.Reads {
			table.Assignment[set.Reads[i].Name] = DefaultCluster
		}
		table.Stats = ComputeStats(set, table.Assignment)
		logger.Info("no informative positions", "unitig", unitig, "reads", len(set.Reads))
		return table, set, nil
	}

	matrix := BuildAdjacency(set, p.Adjacency)
	initial, counts := p.Clusterer.Cluster(matrix)
	logger.Info("clustered reads", "unitig", unitig, "reads", len(set.Reads),
		"positions", len(set.Positions), "clusters", counts.ClustersFound, "unclassified", counts.UnclassifiedReads)
	if err := ctx.Err(); err != nil {
		return table, set, err
	}
	table.Assignment, table.Stats = p.Postprocessor.Refine(ctx, set, initial)
	logger.Info("refined clusters", "unitig", unitig, "clusters", len(table.Stats))
	return table, set, ctx.Err()
}
