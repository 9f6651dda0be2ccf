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

package sites

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixed(t *testing.T, dir, name, content string) string {
	t.Helper()
	filename := filepath.Join(dir, name+"_fixed.tsv")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0600))
	return filename
}

// testAlignment has four rows and these sites:
//
//	c1/2: A A A A  invariant
//	c1/10: A A C C  shared variation
//	c2/5: A C A A  singleton
//	c2/7: A C G N  three bases, one missing
//	c3/1: G N N N  three missing
func testAlignment(t *testing.T) *Alignment {
	dir := t.TempDir()
	files := []string{
		writeFixed(t, dir, "t1", "c2/5\tA\nc1/10\tA\nc1/2\tA\nc2/7\tA\nc3/1\tG\n"),
		writeFixed(t, dir, "t2", "c1/2\tA\nc1/10\tA\nc2/5\tC\nc2/7\tC\n"),
		writeFixed(t, dir, "t3", "c1/2\tA\nc1/10\tc\nc2/5\tA\nc2/7\tG\n"),
		writeFixed(t, dir, "t4", "c1/2\tA\nc1/10\tC\nc2/5\tA\nc2/7\tN\n"),
	}
	a, err := Merge([]string{"t1", "t2", "t3", "t4"}, files)
	require.NoError(t, err)
	return a
}

func TestMerge(t *testing.T) {
	a := testAlignment(t)
	assert.Equal(t, []string{"c1/2", "c1/10", "c2/5", "c2/7", "c3/1"}, a.Keys())
	assert.Equal(t, []string{"c1", "c2", "c3"}, a.Contigs())
	assert.Equal(t, "AAAAG", string(a.Row(0)))
	assert.Equal(t, "ACANN", string(a.Row(3)))
	assert.Equal(t, 1, a.Columns[3].MissingRows())
	assert.Equal(t, 3, a.Columns[4].MissingRows())
}

func TestFilterMissing(t *testing.T) {
	a := testAlignment(t)
	assert.Equal(t, []string{"c1/2", "c1/10", "c2/5", "c2/7"}, a.FilterMissing(2).Keys())
	assert.Equal(t, []string{"c1/2", "c1/10", "c2/5"}, a.FilterMissing(0).Keys())
	assert.Equal(t, a.Keys(), a.FilterMissing(3).Keys())
}

func TestFilterVariants(t *testing.T) {
	a := testAlignment(t)
	for _, test := range []struct {
		variant Variant
		missing int
		keys    []string
	}{
		{AllVariable, 2, []string{"c1/10", "c2/5", "c2/7"}},
		{NoSingletons, 2, []string{"c1/10"}},
		{Biallelic, 2, []string{"c1/10", "c2/5"}},
		{AllVariable, 0, []string{"c1/10", "c2/5"}},
	} {
		assert.Equal(t, test.keys, a.Filter(test.missing, test.variant).Keys(), "%v, m=%v", test.variant, test.missing)
	}
}

func TestFilterIdempotent(t *testing.T) {
	a := testAlignment(t)
	for _, v := range Variants {
		for m := 0; m <= 4; m++ {
			once := a.Filter(m, v)
			twice := once.Filter(m, v)
			assert.Equal(t, once.Keys(), twice.Keys())
		}
		for m := 0; m <= 4; m++ {
			once := a.FilterMissing(m)
			assert.Equal(t, once.Keys(), once.FilterMissing(m).Keys())
		}
	}
}

func TestNexusRoundTrip(t *testing.T) {
	a := testAlignment(t).FilterMissing(2)
	dir := t.TempDir()
	nex, locs := filepath.Join(dir, "alignment.nex"), filepath.Join(dir, "alignment_locs.txt")
	require.NoError(t, a.WriteNexus(nex, locs))

	b, err := ReadNexus(nex, locs)
	require.NoError(t, err)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.Keys(), b.Keys())
	for i := range a.Rows {
		if diff := cmp.Diff(string(a.Row(i)), string(b.Row(i))); diff != "" {
			t.Errorf("row %v differs (-want +got):\n%v", a.Rows[i], diff)
		}
	}
	for j := range a.Columns {
		assert.Equal(t, a.Columns[j].MissingRows(), b.Columns[j].MissingRows())
	}
	// filtering the re-read alignment is still idempotent
	assert.Equal(t, a.Filter(2, AllVariable).Keys(), b.Filter(2, AllVariable).Keys())
}

func TestReadNexusMismatchedLocs(t *testing.T) {
	a := testAlignment(t)
	dir := t.TempDir()
	nex, locs := filepath.Join(dir, "alignment.nex"), filepath.Join(dir, "alignment_locs.txt")
	require.NoError(t, a.WriteNexus(nex, locs))
	require.NoError(t, WriteLocs(locs, a.Keys()[1:]))
	_, err := ReadNexus(nex, locs)
	assert.Error(t, err)
}

func TestWritePhylip(t *testing.T) {
	a := testAlignment(t)
	filename := filepath.Join(t.TempDir(), "alignment.phylip-relaxed")
	require.NoError(t, a.WritePhylip(filename))
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, []string{"4", "5"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"t1", "AAAAG"}, strings.Fields(lines[1]))
}

func TestReadFixedSitesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFixedSites(writeFixed(t, dir, "bad", "c1/2\tAC\n"))
	assert.Error(t, err)
	_, err = Merge([]string{"a"}, []string{filepath.Join(dir, "missing.tsv")})
	assert.Error(t, err)
	_, err = Merge([]string{"a", "b"}, []string{writeFixed(t, dir, "ok", "c1/1\tA\n")})
	assert.Error(t, err)
}
