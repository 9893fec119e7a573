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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/exascience/elstrain/align"
	"github.com/exascience/elstrain/config"
	"github.com/exascience/elstrain/consensus"
	"github.com/exascience/elstrain/gfa"
	"github.com/exascience/elstrain/internal"
	"github.com/exascience/elstrain/reads"
)

const (
	clustersDir      = "clusters"
	checkpointDir    = "consensus_cache.db"
	metricsFile      = "metrics.prom"
	graphDir         = "intermediate_gfa"
	fineGraph        = "10_fine_clusters.gfa"
	mergedGraph      = "20_extended_haplotypes.gfa"
	finalGraph       = "strainy_final.gfa"
	clusterStats     = "stats_clusters.txt"
	requiredFlye     = "flye"
	requiredSamtools = "samtools"
)

// pipeline holds the state shared by the phase and transform stages.
type pipeline struct {
	params   config.Params
	output   string
	source   *reads.BAMSource
	graph    *gfa.Graph
	unitigs  []string
	cache    *consensus.Cache
	registry *prometheus.Registry
	logger   *slog.Logger
}

func (p *pipeline) path(elem ...string) string {
	return filepath.Join(append([]string{p.output}, elem...)...)
}

// newPipeline checks the inputs and opens them. With resume, the
// consensus cache is seeded from the checkpoint of an earlier run.
func newPipeline(cmd *cobra.Command, resume bool) (*pipeline, error) {
	logger, err := setLogOutput(opts.logPath, logLevel())
	if err != nil {
		return nil, err
	}
	params, err := loadParams(cmd)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if missing := internal.MissingBinaries(requiredFlye, requiredSamtools); len(missing) > 0 {
		return nil, fmt.Errorf("required programs not found in PATH: %v", strings.Join(missing, ", "))
	}
	if !checkExist("--bam", opts.bam) || !checkExist("--gfa", opts.gfa) {
		return nil, errors.New("missing input files")
	}
	if !checkExist("", opts.bam+".bai") {
		return nil, fmt.Errorf("BAM file %v is not indexed, run samtools index first", opts.bam)
	}
	output, err := internal.FullPathname(opts.output)
	if err != nil {
		return nil, err
	}
	p := &pipeline{params: params, output: output, registry: prometheus.NewRegistry(), logger: logger}
	if err := internal.MkdirAll(0700, p.path(clustersDir), p.path(graphDir)); err != nil {
		return nil, fmt.Errorf("creating output directories: %w", err)
	}

	p.source, err = reads.OpenBAM(opts.bam, reads.Filter{
		MinMappingQuality:  params.MinMappingQuality,
		MinAlignmentLength: params.MinAlignmentLength,
		ClipLength:         params.ClipLength,
		AlleleFrequency:    params.AlleleFrequency,
	}, logger)
	if err != nil {
		return nil, err
	}
	p.graph, err = gfa.ReadFile(opts.gfa)
	if err != nil {
		return nil, err
	}
	p.unitigs = p.selectUnitigs()
	logger.Info("inputs loaded", "unitigs", len(p.unitigs), "segments", len(p.graph.Segments()))

	cacheOptions := []consensus.CacheOption{consensus.WithLogger(logger), consensus.WithRegisterer(p.registry)}
	if resume {
		records, err := p.loadCheckpoint()
		if err != nil {
			return nil, err
		}
		cacheOptions = append(cacheOptions, consensus.WithRecords(records))
	}
	polisher := consensus.FlyePolisher{
		Dir:       output,
		Mode:      params.Mode,
		Threads:   params.Threads,
		Timeout:   params.PolishTimeout,
		KeepFiles: params.KeepFiles,
		Logger:    logger,
	}
	p.cache = consensus.NewCache(p.source, consensus.StaticReferences(p.graph.Sequences()), polisher, cacheOptions...)
	return p, nil
}

// selectUnitigs returns the unitigs named on the command line, or else
// all graph segments that have alignments, in graph order.
func (p *pipeline) selectUnitigs() []string {
	if len(opts.unitigs) > 0 {
		return opts.unitigs
	}
	aligned := make(map[string]bool)
	for _, name := range p.source.Unitigs() {
		aligned[name] = true
	}
	var result []string
	for _, segment := range p.graph.Segments() {
		if aligned[segment.Name] {
			result = append(result, segment.Name)
		}
	}
	return result
}

func (p *pipeline) scorer() consensus.Scorer {
	return consensus.Scorer{
		Aligner:       align.NewBanded(p.params.BandPadding),
		CoverageFloor: p.params.CoverageFloor,
		IndelLeniency: p.params.IndelLeniency,
	}
}

func (p *pipeline) loadCheckpoint() (map[consensus.Key]*consensus.Record, error) {
	if _, err := os.Stat(p.path(checkpointDir)); os.IsNotExist(err) {
		p.logger.Info("no consensus checkpoint, starting with an empty cache")
		return nil, nil
	}
	checkpoint, err := consensus.OpenCheckpoint(p.path(checkpointDir), p.logger)
	if err != nil {
		return nil, err
	}
	defer checkpoint.Close()
	records, err := checkpoint.Load()
	if err != nil {
		return nil, err
	}
	p.logger.Info("loaded consensus checkpoint", "records", len(records))
	return records, nil
}

func (p *pipeline) saveCheckpoint() (err error) {
	checkpoint, err := consensus.OpenCheckpoint(p.path(checkpointDir), p.logger)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := checkpoint.Close(); err == nil {
			err = nerr
		}
	}()
	return checkpoint.Save(p.cache.Records())
}

// finish persists the consensus cache and the run metrics.
func (p *pipeline) finish() error {
	if err := p.saveCheckpoint(); err != nil {
		return fmt.Errorf("saving consensus checkpoint: %w", err)
	}
	stats := p.cache.Stats()
	p.logger.Info("consensus cache", "entries", stats.Entries, "hits", stats.Hits, "misses", stats.Misses, "failures", stats.Failures)
	if err := prometheus.WriteToTextfile(p.path(metricsFile), p.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

func runStages(cmd *cobra.Command, phase, transform bool) error {
	p, err := newPipeline(cmd, !phase)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var stage int64
	if phase {
		stage++
		if err := timedRun(opts.timed, opts.profile, "Phasing unitigs.", stage, func() error {
			return p.phase(ctx)
		}); err != nil {
			return err
		}
	}
	if transform {
		stage++
		if err := timedRun(opts.timed, opts.profile, "Transforming graph.", stage, func() error {
			return p.transform(ctx)
		}); err != nil {
			return err
		}
	}
	return p.finish()
}

var e2eCmd = &cobra.Command{
	Use:   "e2e",
	Short: "Phase the reads and transform the graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStages(cmd, true, true)
	},
}
