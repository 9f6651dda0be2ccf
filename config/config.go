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

// Package config holds the run configuration of a sisrs invocation.
//
// Settings are read from an optional YAML file, overlaid with command
// line flags, and then frozen into a RunConfig that every later
// component receives by value.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Assembler selects how the composite genome is built.
type Assembler string

const (
	Velvet  Assembler = "velvet"
	Minia   Assembler = "minia"
	Premade Assembler = "premade"
)

// SiteFilter selects which filtered sites alignment feeds the loci
// workflow.
type SiteFilter string

const (
	AllVariable   SiteFilter = "all-variable"
	NoSingletons  SiteFilter = "no-singletons"
	BiallelicOnly SiteFilter = "biallelic-only"
)

// DefaultMissing marks that the missing-data allowance was not set and
// defaults to the number of taxa minus two.
const DefaultMissing = -1

// Tools maps the external programs to the executables that are invoked.
type Tools struct {
	Velveth      string `yaml:"velveth"`
	Velvetg      string `yaml:"velvetg"`
	Minia        string `yaml:"minia"`
	Bowtie2      string `yaml:"bowtie2"`
	Bowtie2Build string `yaml:"bowtie2_build"`
	Samtools     string `yaml:"samtools"`
	Mafft        string `yaml:"mafft"`
}

// File is the YAML representation of a run configuration.
type File struct {
	GenomeSize   int64   `yaml:"genome_size"`
	Processors   int     `yaml:"processors"`
	Threads      int     `yaml:"threads"`
	Reference    string  `yaml:"reference"`
	Kmer         int     `yaml:"kmer"`
	DataDir      string  `yaml:"data_dir"`
	OutDir       string  `yaml:"out_dir"`
	Assembler    string  `yaml:"assembler"`
	Premade      string  `yaml:"premade"`
	MinReads     int     `yaml:"min_reads"`
	Threshold    float64 `yaml:"threshold"`
	Missing      int     `yaml:"missing"`
	TargetLength int     `yaml:"target_length"`
	Ploidy       int     `yaml:"ploidy"`
	SiteFilter   string  `yaml:"site_filter"`
	LogPath      string  `yaml:"log_path"`
	Progress     bool    `yaml:"progress"`
	Timed        bool    `yaml:"timed"`
	Tools        Tools   `yaml:"tools"`
}

// Default returns the configuration used when neither a file nor a
// flag sets a value.
func Default() File {
	return File{
		Processors:   runtime.NumCPU(),
		Threads:      1,
		Kmer:         21,
		Assembler:    string(Velvet),
		MinReads:     3,
		Threshold:    1.0,
		Missing:      DefaultMissing,
		TargetLength: 100000,
		Ploidy:       1,
		SiteFilter:   string(AllVariable),
		Tools: Tools{
			Velveth:      "velveth",
			Velvetg:      "velvetg",
			Minia:        "minia",
			Bowtie2:      "bowtie2",
			Bowtie2Build: "bowtie2-build",
			Samtools:     "samtools",
			Mafft:        "mafft",
		},
	}
}

// Load reads a YAML configuration file on top of Default.
func Load(path string) (File, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("config: read %v: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parse %v: %w", path, err)
	}
	return f, nil
}

// Save writes f as YAML to path.
func (f File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Error is a configuration error. It is always reported before any
// stage runs.
type Error struct {
	Option string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %v: %v", e.Option, e.Reason)
}

// RunConfig is the validated, read-only configuration of a run.
type RunConfig struct {
	GenomeSize   int64
	Processors   int
	Threads      int
	Reference    string
	Kmer         int
	DataDir      string
	OutDir       string
	Assembler    Assembler
	Premade      string
	MinReads     int
	Threshold    float64
	TargetLength int
	Ploidy       int
	SiteFilter   SiteFilter
	LogPath      string
	Progress     bool
	Timed        bool
	Tools        Tools

	missing int
}

// Build validates f and freezes it into a RunConfig.
func Build(f File) (RunConfig, error) {
	cfg := RunConfig{
		GenomeSize:   f.GenomeSize,
		Processors:   f.Processors,
		Threads:      f.Threads,
		Reference:    f.Reference,
		Kmer:         f.Kmer,
		DataDir:      f.DataDir,
		OutDir:       f.OutDir,
		Assembler:    Assembler(strings.ToLower(f.Assembler)),
		Premade:      f.Premade,
		MinReads:     f.MinReads,
		Threshold:    f.Threshold,
		TargetLength: f.TargetLength,
		Ploidy:       f.Ploidy,
		SiteFilter:   SiteFilter(strings.ToLower(f.SiteFilter)),
		LogPath:      f.LogPath,
		Progress:     f.Progress,
		Timed:        f.Timed,
		Tools:        f.Tools,
		missing:      f.Missing,
	}
	if cfg.DataDir == "" {
		return cfg, &Error{"data-dir", "a directory containing one subdirectory per taxon is required"}
	}
	if cfg.OutDir == "" {
		cfg.OutDir = cfg.DataDir
	}
	if cfg.Processors < 1 {
		return cfg, &Error{"processors", fmt.Sprintf("%v, must be at least 1", cfg.Processors)}
	}
	if cfg.Threads < 1 {
		return cfg, &Error{"threads", fmt.Sprintf("%v, must be at least 1", cfg.Threads)}
	}
	if cfg.Kmer < 1 || cfg.Kmer%2 == 0 {
		return cfg, &Error{"kmer", fmt.Sprintf("%v, must be a positive odd number", cfg.Kmer)}
	}
	switch cfg.Assembler {
	case Velvet, Minia:
		if cfg.GenomeSize <= 0 {
			return cfg, &Error{"genome-size", "a positive approximate genome size is required to subsample reads"}
		}
	case Premade:
		if cfg.Premade == "" {
			return cfg, &Error{"premade", "the premade assembler requires the path of a composite genome"}
		}
	default:
		return cfg, &Error{"assembler", fmt.Sprintf("%q, must be one of velvet, minia, premade", cfg.Assembler)}
	}
	if cfg.MinReads < 1 {
		return cfg, &Error{"min-reads", fmt.Sprintf("%v, must be at least 1", cfg.MinReads)}
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return cfg, &Error{"threshold", fmt.Sprintf("%v, must be in (0, 1]", cfg.Threshold)}
	}
	if cfg.Ploidy != 1 && cfg.Ploidy != 2 {
		return cfg, &Error{"ploidy", fmt.Sprintf("%v, must be 1 or 2", cfg.Ploidy)}
	}
	switch cfg.SiteFilter {
	case AllVariable, NoSingletons, BiallelicOnly:
	default:
		return cfg, &Error{"site-filter", fmt.Sprintf("%q, must be one of all-variable, no-singletons, biallelic-only", cfg.SiteFilter)}
	}
	if cfg.missing < DefaultMissing {
		return cfg, &Error{"missing", fmt.Sprintf("%v, must not be negative", cfg.missing)}
	}
	return cfg, nil
}

// Missing returns the number of taxa that may lack data at a site or
// locus, given the number of taxa in the run.
func (cfg RunConfig) Missing(nTaxa int) int {
	if cfg.missing == DefaultMissing {
		if nTaxa < 2 {
			return 0
		}
		return nTaxa - 2
	}
	return cfg.missing
}

// CheckTaxa validates the settings that depend on the number of taxa.
func (cfg RunConfig) CheckTaxa(nTaxa int) error {
	if nTaxa < 2 {
		return &Error{"data-dir", fmt.Sprintf("found %v taxa, at least 2 are required", nTaxa)}
	}
	if m := cfg.Missing(nTaxa); m > nTaxa-2 {
		return &Error{"missing", fmt.Sprintf("%v, at most %v with %v taxa (at least two taxa must remain)", m, nTaxa-2, nTaxa)}
	}
	return nil
}

// WithMissing returns a copy of cfg with a different missing-data
// allowance.
func (cfg RunConfig) WithMissing(missing int) RunConfig {
	cfg.missing = missing
	return cfg
}
