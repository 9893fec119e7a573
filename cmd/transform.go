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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Rewrite the assembly graph from the clustering tables",
	Long: `Replace every clustered unitig by one segment per haplotype, link the new
segments using split reads, and write the phased graphs to
<output>/intermediate_gfa and <output>/strainy_final.gfa.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStages(cmd, false, true)
	},
}

func (p *pipeline) transform(ctx context.Context) (err error) {
	stats, err := os.OpenFile(p.path(clusterStats), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return fmt.Errorf("opening cluster statistics: %w", err)
	}
	defer func() {
		if nerr := stats.Close(); err == nil {
			err = nerr
		}
	}()

	engine := &transform.Engine{
		Graph:       p.graph,
		Consensus:   p.cache,
		Distancer:   consensus.ClusterDistance{Cache: p.cache, Scorer: p.scorer()},
		Loader:      p.source,
		ClustersDir: p.path(clustersDir),
		Params:      p.params,
		Logger:      p.logger,
		StatsOut:    stats,
	}
	if err := engine.Run(ctx, p.unitigs); err != nil {
		return err
	}
	if err := gfa.WriteFile(p.path(graphDir, fineGraph), p.graph); err != nil {
		return err
	}

	merged := p.graph.MergeLinearPaths()
	p.graph.Clean()
	p.logger.Info("merged linear paths", "chains", merged)
	if err := gfa.WriteFile(p.path(graphDir, mergedGraph), p.graph); err != nil {
		return err
	}
	return gfa.WriteFile(p.path(finalGraph), p.graph)
}
