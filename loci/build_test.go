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

package loci

import (
	"context"
	"os"
	"testing"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/internal/toolstest"
	"github.com/exascience/sisrs/layout"
	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/taxa"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func toolEnv(t *testing.T, files map[string]int) (*stages.Env, *observer.ObservedLogs) {
	t.Helper()
	dir := toolstest.DataDir(t, files)
	f := config.Default()
	f.DataDir = dir
	f.GenomeSize = 1
	f.Processors = 2
	f.Tools = toolstest.Fake(t, ">c1\nACGT\n")
	cfg, err := config.Build(f)
	require.NoError(t, err)
	set, err := taxa.Discover(dir, layout.Reserved()...)
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	return stages.NewEnv(cfg, set, zap.New(core), uuid.New()), logs
}

func readFileOf(env *stages.Env, id string, i int) string {
	taxon, _ := env.Taxa.Get(id)
	return taxon.Reads[i]
}

func TestBuild(t *testing.T) {
	env, _ := toolEnv(t, map[string]int{"t1": 2, "t2": 1, "t3": 1, "t4": 1})
	l := env.Layout
	reference := []fasta.Record{rec("L1", "ACGT"), rec("L2", "GGCC"), rec("L3", "TTAA")}
	for _, id := range env.Taxa.IDs() {
		require.NoError(t, fasta.WriteFile(l.LociReference(id), reference))
	}
	// the two read files of t1 cover different halves of L1
	toolstest.Pileup(t, readFileOf(env, "t1", 0), "L1\t1\tA\t3\t...\tIII\nL1\t2\tC\t3\t...\tIII\n")
	toolstest.Pileup(t, readFileOf(env, "t1", 1), "L1\t3\tG\t3\t...\tIII\nL1\t4\tT\t3\t...\tIII\nL2\t1\tG\t3\t...\tIII\n")
	toolstest.Pileup(t, readFileOf(env, "t2", 0),
		"L1\t1\tA\t3\t...\tIII\nL1\t2\tC\t3\t...\tIII\nL1\t3\tG\t3\t...\tIII\nL1\t4\tT\t3\tAAA\tIII\n"+
			"L2\t1\tG\t3\t...\tIII\nL2\t2\tG\t3\t...\tIII\nL2\t3\tC\t3\t...\tIII\nL2\t4\tC\t3\t...\tIII\n")
	toolstest.Pileup(t, readFileOf(env, "t3", 0),
		"L1\t1\tA\t3\t...\tIII\nL1\t2\tC\t3\t...\tIII\nL3\t1\tT\t3\t...\tIII\nL3\t2\tT\t3\t...\tIII\n")
	toolstest.Pileup(t, readFileOf(env, "t4", 0), "L1\t1\tA\t3\t...\tIII\nL1\t2\tC\t2\t..\tII\n")

	built, lost, err := Build(context.Background(), env, 3)
	require.NoError(t, err)

	require.Len(t, built, 2)
	l1, l2 := built[0], built[1]
	assert.Equal(t, "L1", l1.ID)
	assert.Equal(t, 4, l1.Present())
	assert.Equal(t, "ACGT", string(l1.Rows["t1"]), "merged from both read files")
	assert.Equal(t, "ACGA", string(l1.Rows["t2"]))
	assert.Equal(t, "AC--", string(l1.Rows["t3"]))
	assert.Equal(t, "A---", string(l1.Rows["t4"]), "sites below the minimum coverage are gaps")
	assert.Equal(t, "L2", l2.ID)
	assert.Equal(t, 2, l2.Present())
	assert.Equal(t, "GGCC", string(l2.Rows["t2"]))

	assert.Equal(t, []Lost{{ID: "L3", Present: 1, Absent: 3}}, lost)
	data, err := os.ReadFile(l.Lost())
	require.NoError(t, err)
	assert.Equal(t, "L3\t1\t3\n", string(data))
	_, err = os.Stat(l.Aligned("L3"))
	assert.True(t, os.IsNotExist(err), "lost loci are not aligned")

	// t1 merges its parts, the single part of t2 becomes the loci BAM
	for i := 0; i < 2; i++ {
		_, err = os.Stat(l.LociPartBam("t1", i))
		assert.NoError(t, err)
	}
	_, err = os.Stat(l.LociPartBam("t2", 0))
	assert.True(t, os.IsNotExist(err))
	for _, id := range env.Taxa.IDs() {
		_, err = os.Stat(l.LociBam(id))
		assert.NoError(t, err, id)
	}
}

func TestBuildSkipsTaxaWithoutReference(t *testing.T) {
	env, logs := toolEnv(t, map[string]int{"t1": 1, "t2": 1, "t3": 0})
	l := env.Layout
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, fasta.WriteFile(l.LociReference(id), []fasta.Record{rec("L1", "ACGT")}))
	}
	require.NoError(t, os.Remove(l.LociReference("t2")))
	toolstest.Pileup(t, readFileOf(env, "t1", 0), "L1\t1\tA\t3\t...\tIII\n")

	built, lost, err := Build(context.Background(), env, 3)
	require.NoError(t, err)
	assert.Empty(t, built)
	assert.Equal(t, []Lost{{ID: "L1", Present: 1, Absent: 2}}, lost)
	_, err = os.Stat(l.TaxonLoci("t2"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, logs.FilterMessage("Taxon without loci reference contributes no loci").Len())
	assert.Equal(t, 1, logs.FilterMessage("Taxon without read files contributes no loci").Len())
}

func TestReferencesFromShared(t *testing.T) {
	env, logs := toolEnv(t, map[string]int{"t1": 1, "t2": 1, "t3": 0})
	l := env.Layout
	require.NoError(t, fasta.WriteFile(l.SharedReference(), []fasta.Record{rec("S1", "ACGT"), rec("S2", "GGGG")}))
	toolstest.Pileup(t, readFileOf(env, "t1", 0), "S2\t2\tG\t3\tTTT\tIII\n")

	require.NoError(t, ReferencesFromShared(context.Background(), env))

	t1, err := fasta.ReadFile(l.LociReference("t1"))
	require.NoError(t, err)
	assert.Equal(t, []fasta.Record{rec("S2", "GTGG")}, t1)
	for _, id := range []string{"t2", "t3"} {
		_, err = os.Stat(l.LociReference(id))
		assert.True(t, os.IsNotExist(err), id)
	}
	assert.Equal(t, 1, logs.FilterMessage("No shared reference contig is covered").Len())
	order, err := ReadOrder(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2"}, order)
}
