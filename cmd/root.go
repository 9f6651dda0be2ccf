// sisrs: site identification from short read sequences.
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
// <https://github.com/exascience/sisrs/blob/master/LICENSE.txt>.

// Package cmd implements the command line interface of sisrs.
package cmd

import (
	"fmt"
	"runtime"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/layout"
	"github.com/exascience/sisrs/logging"
	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/taxa"
	"github.com/exascience/sisrs/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// ProgramMessage is the first line printed when sisrs runs.
var ProgramMessage = fmt.Sprint(
	utils.ProgramName, " version ", utils.ProgramVersion,
	" compiled with ", runtime.Version(),
	" - see ", utils.ProgramURL, " for more information.",
)

type options struct {
	configPath string
	debug      bool
	defaults   config.File
}

// bindFlags registers one flag per configuration setting, with the
// values in f as defaults.
func bindFlags(flags *pflag.FlagSet, f *config.File) {
	flags.Int64VarP(&f.GenomeSize, "genome-size", "g", f.GenomeSize, "approximate genome size, used to subsample reads for the composite genome")
	flags.IntVarP(&f.Processors, "processors", "p", f.Processors, "number of external tool jobs that run at the same time")
	flags.IntVar(&f.Threads, "threads", f.Threads, "number of threads per external tool job")
	flags.StringVarP(&f.Reference, "reference", "r", f.Reference, "reference genome, to report the positions of composite contigs")
	flags.IntVarP(&f.Kmer, "kmer", "k", f.Kmer, "k-mer size of the assembler")
	flags.StringVarP(&f.DataDir, "data-dir", "f", f.DataDir, "directory with one subdirectory of reads per taxon")
	flags.StringVarP(&f.OutDir, "out-dir", "z", f.OutDir, "output directory, defaults to the data directory")
	flags.StringVarP(&f.Assembler, "assembler", "a", f.Assembler, "composite genome assembler: velvet, minia or premade")
	flags.StringVarP(&f.Premade, "premade", "c", f.Premade, "premade composite genome, for the premade assembler")
	flags.IntVarP(&f.MinReads, "min-reads", "m", f.MinReads, "minimum read coverage to call a base")
	flags.Float64VarP(&f.Threshold, "threshold", "t", f.Threshold, "minimum frequency of the called base")
	flags.IntVarP(&f.Missing, "missing", "n", f.Missing, "number of taxa that may lack data at a site or locus, defaults to the number of taxa minus two")
	flags.IntVarP(&f.TargetLength, "target-length", "l", f.TargetLength, "target length of the concatenated loci alignments")
	flags.IntVar(&f.Ploidy, "ploidy", f.Ploidy, "ploidy of the taxa: 1 or 2")
	flags.StringVar(&f.SiteFilter, "site-filter", f.SiteFilter, "sites alignment that feeds the loci workflow: all-variable, no-singletons or biallelic-only")
	flags.StringVar(&f.LogPath, "log-path", f.LogPath, "directory below which the run logs are written, defaults to $HOME")
	flags.BoolVar(&f.Progress, "progress", f.Progress, "show progress bars for external tool jobs")
	flags.BoolVar(&f.Timed, "timed", f.Timed, "log the run time of every stage")
}

// mergeFlags reads the configuration file at path, or the defaults if
// path is empty, and overlays every flag that was set explicitly.
func mergeFlags(flags *pflag.FlagSet, path string) (config.File, error) {
	f := config.Default()
	if path != "" {
		var err error
		if f, err = config.Load(path); err != nil {
			return f, err
		}
	}
	overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	bindFlags(overlay, &f)
	var err error
	flags.Visit(func(flag *pflag.Flag) {
		if err != nil || overlay.Lookup(flag.Name) == nil {
			return
		}
		if e := overlay.Set(flag.Name, flag.Value.String()); e != nil {
			err = fmt.Errorf("flag --%v: %w", flag.Name, e)
		}
	})
	return f, err
}

func (o *options) runConfig(cmd *cobra.Command) (config.RunConfig, error) {
	f, err := mergeFlags(cmd.Flags(), o.configPath)
	if err != nil {
		return config.RunConfig{}, err
	}
	return config.Build(f)
}

// env builds the run environment without opening a log.
func (o *options) env(cmd *cobra.Command, logger *zap.Logger) (*stages.Env, error) {
	cfg, err := o.runConfig(cmd)
	if err != nil {
		return nil, err
	}
	set, err := taxa.Discover(cfg.DataDir, layout.Reserved()...)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckTaxa(set.Len()); err != nil {
		return nil, err
	}
	return stages.NewEnv(cfg, set, logger, uuid.Nil), nil
}

// openRun builds the run environment and opens the run log. The
// returned function closes the log.
func (o *options) openRun(cmd *cobra.Command) (env *stages.Env, closeLog func() error, err error) {
	env, err = o.env(cmd, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(logging.Options{Path: env.Config.LogPath, RedirectStderr: true, Debug: o.debug})
	if err != nil {
		return nil, nil, err
	}
	env = stages.NewEnv(env.Config, env.Taxa, log.Logger, log.RunID)
	if env.Config.Progress {
		env.Gateway.Progress = log.Console
	}
	log.Info(ProgramMessage)
	log.Info("Run configuration",
		zap.String("data-dir", env.Config.DataDir),
		zap.String("out-dir", env.Config.OutDir),
		zap.Strings("taxa", env.Taxa.IDs()),
		zap.Strings("without-reads", env.Taxa.WithoutReads()),
		zap.Int("missing", env.Missing()),
		zap.String("assembler", string(env.Config.Assembler)),
		zap.Int("ploidy", env.Config.Ploidy),
		zap.String("log", log.Filename))
	return env, log.Close, nil
}

// NewRootCommand returns the sisrs command with all its subcommands.
func NewRootCommand() *cobra.Command {
	o := &options{defaults: config.Default()}
	root := &cobra.Command{
		Use:   utils.ProgramName,
		Short: "Site identification from short read sequences",
		Long: ProgramMessage + `

sisrs identifies phylogenetically informative sites and orthologous loci
from the unassembled short reads of a set of taxa. The data directory
contains one subdirectory of reads per taxon.

Settings are read from the file given with --config, and flags that are
set explicitly take precedence over it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	bindFlags(flags, &o.defaults)
	flags.StringVar(&o.configPath, "config", "", "YAML configuration file")
	flags.BoolVar(&o.debug, "debug", false, "log debug messages on the console")

	root.AddCommand(newSitesCommand(o), newLociCommand(o), newStatusCommand(o))
	for _, stage := range stages.All {
		root.AddCommand(newStageCommand(o, stage.Name))
	}
	return root
}
