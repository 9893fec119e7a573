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

// Package config holds the thresholds and run settings of a phasing
// run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Read technologies accepted by the polisher.
const (
	ModeHiFi = "hifi"
	ModeNano = "nano"
)

// Params holds every threshold of the pipeline.
type Params struct {
	// Read filtering and pileup.
	MinMappingQuality  int     `yaml:"min_mapping_quality"`
	MinAlignmentLength int     `yaml:"min_alignment_length"`
	ClipLength         int     `yaml:"clip_length"`
	AlleleFrequency    float64 `yaml:"allele_frequency"`

	// Distance matrix and clustering.
	MinReadOverlap     int `yaml:"min_read_overlap"`
	EdgeRemoval        int `yaml:"edge_removal"`
	MinSharedPositions int `yaml:"min_shared_positions"`
	MinClusterSize     int `yaml:"min_cluster_size"`

	// Postprocessing.
	MinPostprocessReads int `yaml:"min_postprocess_reads"`
	ClusterDivergence   int `yaml:"cluster_divergence"`
	MergeDivergence     int `yaml:"merge_divergence"`

	// Consensus scoring.
	CoverageFloor int `yaml:"coverage_floor"`
	IndelLeniency int `yaml:"indel_leniency"`
	BandPadding   int `yaml:"band_padding"`

	// Graph transformation.
	StartEndGap           int     `yaml:"start_end_gap"`
	StrongClusterMinReads int     `yaml:"strong_cluster_min_reads"`
	ParentalMinLen        float64 `yaml:"parental_min_len"`
	ParentalMinCoverage   float64 `yaml:"parental_min_coverage"`
	ParentalMaxCoverage   float64 `yaml:"parental_max_coverage"`
	MinReadsNeighbour     int     `yaml:"min_reads_neighbour"`
	MinReadsCluster       int     `yaml:"min_reads_cluster"`
	MaxHops               int     `yaml:"max_hops"`
	PathHopLimit          int     `yaml:"path_hop_limit"`
	UnclusteredMinReads   int     `yaml:"unclustered_min_reads"`
	UnclusteredClusterID  int     `yaml:"unclustered_cluster_id"`

	// Run settings.
	Mode          string        `yaml:"mode"`
	Threads       int           `yaml:"threads"`
	PolishTimeout time.Duration `yaml:"polish_timeout"`
	KeepFiles     bool          `yaml:"keep_files"`
}

// Default returns the default parameters.
func Default() Params {
	return Params{
		MinMappingQuality:  20,
		MinAlignmentLength: 1000,
		ClipLength:         100,
		AlleleFrequency:    0.1,

		MinReadOverlap:     1000,
		EdgeRemoval:        1,
		MinSharedPositions: 1,
		MinClusterSize:     4,

		MinPostprocessReads: 6,
		ClusterDivergence:   1,
		MergeDivergence:     0,

		CoverageFloor: 3,
		IndelLeniency: 5,
		BandPadding:   100,

		StartEndGap:           1000,
		StrongClusterMinReads: 3,
		ParentalMinLen:        0.85,
		ParentalMinCoverage:   15,
		ParentalMaxCoverage:   500,
		MinReadsNeighbour:     3,
		MinReadsCluster:       2,
		MaxHops:               3,
		PathHopLimit:          10,
		UnclusteredMinReads:   10,
		UnclusteredClusterID:  1000000,

		Mode:          ModeHiFi,
		Threads:       4,
		PolishTimeout: 30 * time.Minute,
	}
}

// Load overlays the YAML file at path onto the defaults and validates
// the result. An empty path returns the defaults.
func Load(path string) (Params, error) {
	params := Default()
	if path == "" {
		return params, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		return params, fmt.Errorf("parsing config %v: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("config %v: %w", path, err)
	}
	return params, nil
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	var errs []error
	positive := func(name string, value int) {
		if value < 1 {
			errs = append(errs, fmt.Errorf("%v must be positive, got %v", name, value))
		}
	}
	nonNegative := func(name string, value int) {
		if value < 0 {
			errs = append(errs, fmt.Errorf("%v must not be negative, got %v", name, value))
		}
	}
	positive("threads", p.Threads)
	positive("min_cluster_size", p.MinClusterSize)
	positive("coverage_floor", p.CoverageFloor)
	positive("indel_leniency", p.IndelLeniency)
	positive("path_hop_limit", p.PathHopLimit)
	positive("max_hops", p.MaxHops)
	nonNegative("edge_removal", p.EdgeRemoval)
	nonNegative("start_end_gap", p.StartEndGap)
	nonNegative("cluster_divergence", p.ClusterDivergence)
	nonNegative("merge_divergence", p.MergeDivergence)
	nonNegative("min_read_overlap", p.MinReadOverlap)
	if p.AlleleFrequency <= 0 || p.AlleleFrequency > 0.5 {
		errs = append(errs, fmt.Errorf("allele_frequency must be in (0, 0.5], got %v", p.AlleleFrequency))
	}
	if p.ParentalMinCoverage > p.ParentalMaxCoverage {
		errs = append(errs, fmt.Errorf("parental_min_coverage %v exceeds parental_max_coverage %v", p.ParentalMinCoverage, p.ParentalMaxCoverage))
	}
	if p.Mode != ModeHiFi && p.Mode != ModeNano {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModeHiFi, ModeNano, p.Mode))
	}
	if p.PolishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("polish_timeout must be positive, got %v", p.PolishTimeout))
	}
	return errors.Join(errs...)
}
