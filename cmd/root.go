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

// Package cmd implements the elstrain command line.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/exascience/elstrain/config"
	"github.com/exascience/elstrain/utils"
)

type options struct {
	output     string
	bam        string
	gfa        string
	configFile string
	unitigs    []string
	threads    int
	mode       string
	keepFiles  bool
	logPath    string
	debug      bool
	timed      bool
	profile    string
}

var opts options

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   utils.ProgramName,
	Short: "Strain-level phasing of assembly graphs",
	Long: `elstrain clusters the reads aligned to each unitig of an assembly graph into
haplotypes, and rewrites the graph so that every haplotype gets its own
segments and links.`,
	Version:       utils.ProgramVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.output, "output", "o", "", "output directory")
	flags.StringVarP(&opts.bam, "bam", "b", "", "indexed BAM file of the reads aligned to the unitigs")
	flags.StringVarP(&opts.gfa, "gfa", "g", "", "assembly graph in GFA format")
	flags.StringVar(&opts.configFile, "config", "", "YAML file with pipeline parameters")
	flags.StringSliceVar(&opts.unitigs, "unitig", nil, "unitigs to process (default all)")
	flags.IntVarP(&opts.threads, "threads", "t", config.Default().Threads, "number of worker threads")
	flags.StringVar(&opts.mode, "mode", config.ModeHiFi, "read technology: hifi or nano")
	flags.BoolVar(&opts.keepFiles, "keep-files", false, "keep polisher scratch files")
	flags.StringVar(&opts.logPath, "log-path", "", "directory for the log file (default $HOME)")
	flags.BoolVar(&opts.debug, "debug", false, "log debug messages")
	flags.BoolVar(&opts.timed, "timed", false, "report the elapsed time of each phase")
	flags.StringVar(&opts.profile, "profile", "", "write a CPU profile per phase with this prefix")
	_ = rootCmd.MarkPersistentFlagRequired("output")
	_ = rootCmd.MarkPersistentFlagRequired("bam")
	_ = rootCmd.MarkPersistentFlagRequired("gfa")

	rootCmd.AddCommand(phaseCmd, transformCmd, e2eCmd)
}

// loadParams loads the configuration file and applies the run settings
// given on the command line.
func loadParams(cmd *cobra.Command) (config.Params, error) {
	p, err := config.Load(opts.configFile)
	if err != nil {
		return p, err
	}
	flags := cmd.Flags()
	if flags.Changed("threads") {
		p.Threads = opts.threads
	}
	if flags.Changed("mode") {
		p.Mode = opts.mode
	}
	if flags.Changed("keep-files") {
		p.KeepFiles = opts.keepFiles
	}
	return p, p.Validate()
}

func logLevel() slog.Level {
	if opts.debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}
