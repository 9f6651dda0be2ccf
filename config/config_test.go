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

package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFile() File {
	f := Default()
	f.DataDir = "data"
	f.GenomeSize = 3000000
	return f
}

func TestDefault(t *testing.T) {
	f := Default()
	assert.Equal(t, 3, f.MinReads)
	assert.Equal(t, 1.0, f.Threshold)
	assert.Equal(t, 1, f.Ploidy)
	assert.Equal(t, DefaultMissing, f.Missing)
	assert.Equal(t, "samtools", f.Tools.Samtools)
}

func TestBuild(t *testing.T) {
	cfg, err := Build(validFile())
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.OutDir, "out dir defaults to the data dir")
	assert.Equal(t, Velvet, cfg.Assembler)
	assert.Equal(t, AllVariable, cfg.SiteFilter)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		option string
		modify func(*File)
	}{
		{"data-dir", func(f *File) { f.DataDir = "" }},
		{"processors", func(f *File) { f.Processors = 0 }},
		{"kmer", func(f *File) { f.Kmer = 20 }},
		{"genome-size", func(f *File) { f.GenomeSize = 0 }},
		{"premade", func(f *File) { f.Assembler = "premade" }},
		{"assembler", func(f *File) { f.Assembler = "spades" }},
		{"min-reads", func(f *File) { f.MinReads = 0 }},
		{"threshold", func(f *File) { f.Threshold = 1.5 }},
		{"ploidy", func(f *File) { f.Ploidy = 3 }},
		{"site-filter", func(f *File) { f.SiteFilter = "some" }},
		{"missing", func(f *File) { f.Missing = -4 }},
	}
	for _, test := range tests {
		f := validFile()
		test.modify(&f)
		_, err := Build(f)
		var cerr *Error
		if assert.True(t, errors.As(err, &cerr), test.option) {
			assert.Equal(t, test.option, cerr.Option)
		}
	}
}

func TestPremadeNeedsNoGenomeSize(t *testing.T) {
	f := validFile()
	f.GenomeSize = 0
	f.Assembler = "premade"
	f.Premade = "contigs.fa"
	_, err := Build(f)
	assert.NoError(t, err)
}

func TestMissing(t *testing.T) {
	cfg, err := Build(validFile())
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Missing(6))
	assert.NoError(t, cfg.CheckTaxa(6))
	assert.Error(t, cfg.CheckTaxa(1))

	cfg = cfg.WithMissing(5)
	assert.Equal(t, 5, cfg.Missing(6))
	assert.Error(t, cfg.CheckTaxa(6))
	assert.NoError(t, cfg.CheckTaxa(7))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sisrs.yaml")
	f := validFile()
	f.Ploidy = 2
	f.Tools.Mafft = "/opt/mafft/bin/mafft"
	require.NoError(t, f.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, loaded)
}
