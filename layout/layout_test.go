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

package layout

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaths(t *testing.T) {
	l := New("/out")
	for _, test := range []struct{ got, want string }{
		{l.CompositeContigs(), "/out/composite/contigs.fa"},
		{l.TaxonBam("t1"), "/out/t1/t1.bam"},
		{l.FixedSites("t1"), "/out/t1/t1_fixed.tsv"},
		{l.Alignment(), "/out/alignment.nex"},
		{l.Filtered(2, "_pi"), "/out/alignment_m2_pi.nex"},
		{l.FilteredLocs(0, ""), "/out/alignment_m0_locs.txt"},
		{l.Marker("subsample"), "/out/.sisrs/subsample.yaml"},
		{l.LociSam("t1", 0), "/out/t1/t1_loci_1.sam"},
		{l.Selection("mv"), "/out/loci/mv"},
	} {
		assert.Equal(t, filepath.FromSlash(test.want), test.got)
	}
}

func TestReservedAreNotTaxa(t *testing.T) {
	l := New("/out")
	reserved := make(map[string]bool)
	for _, r := range Reserved() {
		reserved[r] = true
	}
	for _, p := range []string{l.Subsamples(), l.Composite(), l.Loci(), filepath.Dir(l.Marker("x")), filepath.Dir(filepath.Dir(l.JobLog("x", "y")))} {
		rel, err := filepath.Rel(l.Out, p)
		assert.NoError(t, err)
		assert.True(t, reserved[rel], rel)
	}
}
