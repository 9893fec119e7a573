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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/exascience/elstrain/clustering"
	"github.com/exascience/elstrain/consensus"
)

var phaseCmd = &cobra.Command{
	Use:   "phase",
	Short: "Cluster the reads of every unitig into haplotypes",
	Long: `Cluster the reads of every unitig by the alleles they carry at informative
positions, refine the clusters with polished consensus sequences, and store
one clustering table per unitig under <output>/clusters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStages(cmd, true, false)
	},
}

func (p *pipeline) phase(ctx context.Context) error {
	params := p.params
	phaser := clustering.Phaser{
		Loader: p.source,
		Adjacency: clustering.AdjacencyOptions{
			EdgeRemoval:        params.EdgeRemoval,
			MinSharedPositions: params.MinSharedPositions,
			MinReadOverlap:     params.MinReadOverlap,
		},
		Clusterer: clustering.Clusterer{MinClusterSize: params.MinClusterSize},
		Postprocessor: clustering.Postprocessor{
			Distancer: consensus.ClusterDistance{Cache: p.cache, Scorer: p.scorer()},
			Options: clustering.PostprocessOptions{
				MinReadOverlap:      params.MinReadOverlap,
				MergeDivergence:     params.MergeDivergence,
				MinPostprocessReads: params.MinPostprocessReads,
				ClusterDivergence:   params.ClusterDivergence,
			},
			Logger: p.logger,
		},
		Logger: p.logger,
	}
	dir := p.path(clustersDir)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(params.Threads)
	for _, unitig := range p.unitigs {
		unitig := unitig
		g.Go(func() error {
			table, _, err := phaser.Unitig(ctx, unitig)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				p.logger.Error("phasing failed, skipping unitig", "unitig", unitig, "error", err)
				return nil
			}
			if len(table.Assignment) == 0 {
				return nil
			}
			return clustering.WriteTable(dir, table)
		})
	}
	return g.Wait()
}
