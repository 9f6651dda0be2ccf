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

// Package resolver decides where the loci workflow enters: it picks the
// cheapest artifact of an earlier run that is still valid.
package resolver

import (
	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/layout"
	"github.com/exascience/sisrs/sites"
	"github.com/exascience/sisrs/taxa"
)

// EntryPoint is where the loci workflow starts.
type EntryPoint int

// Entry points, cheapest first.
const (
	// EntryLoci: every taxon has its loci reference.
	EntryLoci EntryPoint = iota
	// EntryFromAlignment: a sites alignment selects the loci.
	EntryFromAlignment
	// EntryFromSharedReference: a reference contig set shared by all taxa
	// exists, but no per-taxon references.
	EntryFromSharedReference
	// EntrySitesFirst: nothing exists, the site stages run first.
	EntrySitesFirst
)

func (e EntryPoint) String() string {
	switch e {
	case EntryLoci:
		return "loci"
	case EntryFromAlignment:
		return "from-alignment"
	case EntryFromSharedReference:
		return "from-shared-reference"
	default:
		return "sites-first"
	}
}

// Step is one re-entry step of the loci workflow.
type Step int

const (
	// RunSiteStages runs all site stages.
	RunSiteStages Step = iota
	// DeriveFromAlignment writes the per-taxon references of the contigs
	// in the sites alignment.
	DeriveFromAlignment
	// AlignToSharedReference derives the per-taxon references from reads
	// aligned to the shared reference.
	AlignToSharedReference
	// BuildLoci builds, selects and concatenates the loci.
	BuildLoci
)

func (s Step) String() string {
	switch s {
	case RunSiteStages:
		return "run-site-stages"
	case DeriveFromAlignment:
		return "derive-from-alignment"
	case AlignToSharedReference:
		return "align-to-shared-reference"
	default:
		return "build-loci"
	}
}

// Resolution is the result of Resolve.
type Resolution struct {
	Entry EntryPoint
	// Alignment and Locs name the sites alignment that selects the loci.
	// They are set for every entry point; with EntrySitesFirst, the site
	// stages still have to produce them.
	Alignment string
	Locs      string
}

// Plan returns the steps of the entry point, in order.
func (r Resolution) Plan() []Step {
	return Plan(r.Entry)
}

// Plan returns the steps of an entry point, in order.
func Plan(entry EntryPoint) []Step {
	switch entry {
	case EntryLoci:
		return []Step{BuildLoci}
	case EntryFromAlignment:
		return []Step{DeriveFromAlignment, BuildLoci}
	case EntryFromSharedReference:
		return []Step{AlignToSharedReference, BuildLoci}
	default:
		return []Step{RunSiteStages, DeriveFromAlignment, BuildLoci}
	}
}

// hasLociReferences reports whether every taxon with reads has a loci
// reference.
func hasLociReferences(l layout.Layout, set *taxa.Set) bool {
	n := 0
	for _, taxon := range set.All() {
		if !taxon.HasReads() {
			continue
		}
		if !internal.Exists(l.LociReference(taxon.ID)) {
			return false
		}
		n++
	}
	return n > 0
}

// Resolve inspects the output directory.
func Resolve(l layout.Layout, set *taxa.Set, cfg config.RunConfig) Resolution {
	m := cfg.Missing(set.Len())
	suffix := sites.VariantOf(cfg.SiteFilter).Suffix()
	r := Resolution{Alignment: l.Filtered(m, suffix), Locs: l.FilteredLocs(m, suffix)}
	selected := internal.FirstMissing(r.Alignment, r.Locs) == ""
	if !selected && internal.FirstMissing(l.Alignment(), l.AlignmentLocs()) == "" {
		r.Alignment, r.Locs = l.Alignment(), l.AlignmentLocs()
		selected = true
	}
	switch {
	case hasLociReferences(l, set):
		r.Entry = EntryLoci
	case selected:
		r.Entry = EntryFromAlignment
	case internal.Exists(l.SharedReference()):
		r.Entry = EntryFromSharedReference
	default:
		r.Entry = EntrySitesFirst
	}
	return r
}
