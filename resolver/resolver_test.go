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

package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/layout"
	"github.com/exascience/sisrs/taxa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, filter config.SiteFilter) (layout.Layout, *taxa.Set, config.RunConfig) {
	t.Helper()
	dir := t.TempDir()
	f := config.Default()
	f.DataDir = dir
	f.GenomeSize = 1000
	f.SiteFilter = string(filter)
	cfg, err := config.Build(f)
	require.NoError(t, err)
	var list []*taxa.Taxon
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		list = append(list, &taxa.Taxon{ID: id, Reads: []string{id + ".fq"}})
	}
	list = append(list, &taxa.Taxon{ID: "t5"})
	set, err := taxa.New(list...)
	require.NoError(t, err)
	return layout.New(dir), set, cfg
}

func create(t *testing.T, files ...string) {
	for _, f := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0700))
		require.NoError(t, os.WriteFile(f, []byte("x"), 0600))
	}
}

func TestResolvePrecedence(t *testing.T) {
	l, set, cfg := setup(t, config.NoSingletons)
	// 5 taxa, default missing allowance 3
	r := Resolve(l, set, cfg)
	assert.Equal(t, EntrySitesFirst, r.Entry)
	assert.Equal(t, l.Filtered(3, "_pi"), r.Alignment)
	assert.Equal(t, []Step{RunSiteStages, DeriveFromAlignment, BuildLoci}, r.Plan())

	create(t, l.SharedReference())
	assert.Equal(t, EntryFromSharedReference, Resolve(l, set, cfg).Entry)

	create(t, l.Alignment(), l.AlignmentLocs())
	r = Resolve(l, set, cfg)
	assert.Equal(t, EntryFromAlignment, r.Entry)
	assert.Equal(t, l.Alignment(), r.Alignment, "falls back to the unfiltered alignment")

	create(t, l.Filtered(3, "_pi"), l.FilteredLocs(3, "_pi"))
	r = Resolve(l, set, cfg)
	assert.Equal(t, l.Filtered(3, "_pi"), r.Alignment)
	assert.Equal(t, l.FilteredLocs(3, "_pi"), r.Locs)

	create(t, l.LociReference("t1"), l.LociReference("t2"), l.LociReference("t3"))
	assert.Equal(t, EntryFromAlignment, Resolve(l, set, cfg).Entry, "one taxon with reads lacks a loci reference")

	create(t, l.LociReference("t4"))
	r = Resolve(l, set, cfg)
	assert.Equal(t, EntryLoci, r.Entry, "taxa without reads need no loci reference")
	assert.Equal(t, []Step{BuildLoci}, r.Plan())
}

func TestPlan(t *testing.T) {
	assert.Equal(t, []Step{DeriveFromAlignment, BuildLoci}, Plan(EntryFromAlignment))
	assert.Equal(t, []Step{AlignToSharedReference, BuildLoci}, Plan(EntryFromSharedReference))
	for _, e := range []EntryPoint{EntryLoci, EntryFromAlignment, EntryFromSharedReference, EntrySitesFirst} {
		steps := Plan(e)
		assert.Equal(t, BuildLoci, steps[len(steps)-1], e.String())
	}
}
