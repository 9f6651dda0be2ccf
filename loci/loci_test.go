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
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/taxa"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSet(t *testing.T, ids ...string) *taxa.Set {
	t.Helper()
	var list []*taxa.Taxon
	for _, id := range ids {
		list = append(list, &taxa.Taxon{ID: id, Reads: []string{id + ".fq"}})
	}
	set, err := taxa.New(list...)
	require.NoError(t, err)
	return set
}

func rec(id, seq string) fasta.Record {
	return fasta.Record{ID: id, Seq: []byte(seq)}
}

func TestAlleleID(t *testing.T) {
	assert.Equal(t, "NODE_1", alleleID("NODE_1", 0, 1))
	assert.Equal(t, "NODE_1_2", alleleID("NODE_1", 1, 2))
	locus, allele, err := splitAlleleID("NODE_1_2", 2)
	require.NoError(t, err)
	assert.Equal(t, "NODE_1", locus)
	assert.Equal(t, 1, allele)
	_, _, err = splitAlleleID("NODE_1_3", 2)
	assert.Error(t, err)
	_, _, err = splitAlleleID("NODE", 2)
	assert.Error(t, err)
}

func TestRegroupHaploid(t *testing.T) {
	set := testSet(t, "t1", "t2", "t3")
	perTaxon := [][]fasta.Record{
		{rec("b", "ACGT"), rec("a", "AC--")},
		{rec("a", "----"), rec("c", "GGTT")},
		nil,
	}
	groups, err := Regroup(set, perTaxon, 1, []string{"a", "b", "x"})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "a", groups[0].ID)
	assert.Equal(t, []fasta.Record{rec("t1", "AC--")}, groups[0].Rows, "all-gap rows are removed")
	assert.Equal(t, 1, int(groups[0].Taxa.Count()))
	assert.Equal(t, "b", groups[1].ID)
	assert.Equal(t, "c", groups[2].ID, "unordered loci follow in order of appearance")
	assert.Equal(t, []int{0, 1, 2}, []int{groups[0].Rank, groups[1].Rank, groups[2].Rank})
	assert.True(t, groups[2].Taxa.Test(1))
}

func TestRegroupDiploid(t *testing.T) {
	set := testSet(t, "t1", "t2")
	perTaxon := [][]fasta.Record{
		{rec("L_1", "ACGT"), rec("L_2", "ACGA")},
		{rec("L_1", "AC-T"), rec("L_2", "NN--")},
	}
	groups, err := Regroup(set, perTaxon, 2, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	var names []string
	for _, r := range groups[0].Rows {
		names = append(names, r.ID)
	}
	assert.Equal(t, []string{"t1_1", "t1_2", "t2_1"}, names)
	assert.Equal(t, 0, groups[0].Absent(2))
}

func TestTrimDefaultThreshold(t *testing.T) {
	set := testSet(t, "t1", "t2", "t3", "t4", "t5", "t6")
	f := config.Default()
	f.DataDir = t.TempDir()
	f.GenomeSize = 1
	cfg, err := config.Build(f)
	require.NoError(t, err)
	m := cfg.Missing(set.Len())
	require.Equal(t, 4, m)

	perTaxon := make([][]fasta.Record, 6)
	perTaxon[0] = []fasta.Record{rec("two", "ACGT"), rec("one", "ACGT")}
	perTaxon[3] = []fasta.Record{rec("two", "ACGA")}
	groups, err := Regroup(set, perTaxon, 1, []string{"two", "one"})
	require.NoError(t, err)

	kept, lost := Trim(groups, set.Len(), m)
	require.Len(t, kept, 1)
	assert.Equal(t, "two", kept[0].ID, "4 absent taxa are allowed")
	assert.Equal(t, []Lost{{ID: "one", Present: 1, Absent: 5}}, lost)
}

func TestFromAligned(t *testing.T) {
	set := testSet(t, "t1", "t2")
	groups, err := Regroup(set, [][]fasta.Record{{rec("a", "ACGT")}, {rec("a", "AGT")}}, 1, nil)
	require.NoError(t, err)
	locus, err := FromAligned(groups[0], []fasta.Record{rec("t1", "AC-GT-"), rec("t2", "A--GTN")})
	require.NoError(t, err)
	assert.Equal(t, 4, locus.Length)
	want := map[string][]byte{"t1": []byte("ACGT"), "t2": []byte("A-GT")}
	if diff := cmp.Diff(want, locus.Rows); diff != "" {
		t.Errorf("rows differ (-want +got):\n%v", diff)
	}
	assert.Equal(t, 2, locus.Present())

	_, err = FromAligned(groups[0], []fasta.Record{rec("t1", "ACG"), rec("t2", "AC")})
	assert.Error(t, err)
}

func testEnv(t *testing.T, set *taxa.Set) *stages.Env {
	f := config.Default()
	f.DataDir = t.TempDir()
	f.GenomeSize = 1
	cfg, err := config.Build(f)
	require.NoError(t, err)
	return stages.NewEnv(cfg, set, zap.NewNop(), uuid.New())
}

func TestReferencesFromAlignment(t *testing.T) {
	set, err := taxa.New(
		&taxa.Taxon{ID: "t1", Reads: []string{"r.fq"}},
		&taxa.Taxon{ID: "t2", Reads: []string{"r.fq"}},
		&taxa.Taxon{ID: "t3"},
	)
	require.NoError(t, err)
	env := testEnv(t, set)
	l := env.Layout
	require.NoError(t, fasta.WriteFile(l.CompositeContigs(), []fasta.Record{rec("c1", "AAAA"), rec("c2", "CCCC"), rec("c3", "GGGG")}))
	require.NoError(t, fasta.WriteFile(l.TaxonContigs("t1"), []fasta.Record{rec("c1", "AATA"), rec("c3", "GGTG")}))
	locs := filepath.Join(l.Out, "alignment_locs.txt")
	require.NoError(t, os.WriteFile(locs, []byte("c3/1\nc3/2\nc1/4\n"), 0600))

	require.NoError(t, ReferencesFromAlignment(env, locs))

	order, err := ReadOrder(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c1"}, order)
	shared, err := fasta.ReadFile(l.SharedReference())
	require.NoError(t, err)
	assert.Equal(t, []fasta.Record{rec("c3", "GGGG"), rec("c1", "AAAA")}, shared)
	t1, err := fasta.ReadFile(l.LociReference("t1"))
	require.NoError(t, err)
	assert.Equal(t, []fasta.Record{rec("c3", "GGTG"), rec("c1", "AATA")}, t1, "pruned contigs of the taxon")
	t2, err := fasta.ReadFile(l.LociReference("t2"))
	require.NoError(t, err)
	assert.Equal(t, shared, t2, "composite contigs without pruned contigs")
	_, err = os.Stat(l.LociReference("t3"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadOrderFallback(t *testing.T) {
	set := testSet(t, "t1", "t2")
	env := testEnv(t, set)
	require.NoError(t, fasta.WriteFile(env.Layout.LociReference("t1"), []fasta.Record{rec("a", "A"), rec("c", "C")}))
	require.NoError(t, fasta.WriteFile(env.Layout.LociReference("t2"), []fasta.Record{rec("b", "G"), rec("c", "C")}))
	order, err := ReadOrder(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, order)
}

func TestWriteLost(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "lost.txt")
	require.NoError(t, writeLost(filename, []Lost{{ID: "x", Present: 1, Absent: 5}}))
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "x\t1\t5\n", string(data))
}
