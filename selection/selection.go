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

// Package selection picks loci for a concatenated alignment of bounded
// length, and assigns each selected locus its partition.
//
// Both policies are greedy and keep the discovery order of the loci
// within their ranking. A locus is appended, and the scan stops as soon
// as the total length exceeds the target: the locus that causes the
// overflow is part of the selection.
package selection

import (
	"fmt"

	"github.com/exascience/sisrs/loci"
)

// Policy ranks the loci.
type Policy int

const (
	// MostVariable keeps the discovery order, which ranks the loci by
	// decreasing variability.
	MostVariable Policy = iota
	// MostSpecies ranks loci present in more taxa first, and by
	// discovery order within the same number of taxa.
	MostSpecies
)

// Policies lists both policies; a run selects loci with each of them.
var Policies = []Policy{MostVariable, MostSpecies}

func (p Policy) String() string {
	if p == MostSpecies {
		return "ms"
	}
	return "mv"
}

// Partition is the span of a locus in the concatenated alignment. Start
// and End are 1-based and inclusive.
type Partition struct {
	Index int
	Locus string
	Start int
	End   int
}

// Length of the partition.
func (p Partition) Length() int {
	return p.End - p.Start + 1
}

func (p Partition) String() string {
	return fmt.Sprintf("DNA, p%v=%v-%v", p.Index, p.Start, p.End)
}

// Plan is the result of a selection.
type Plan struct {
	Policy     Policy
	Target     int
	Total      int
	Loci       []*loci.Locus
	Partitions []Partition
}

// Overflowed reports whether the selection stopped because the total
// exceeded the target.
func (p *Plan) Overflowed() bool {
	return p.Total > p.Target
}

// add appends a locus and reports whether the target is exceeded.
func (p *Plan) add(l *loci.Locus) bool {
	start := p.Total + 1
	p.Total += l.Length
	p.Loci = append(p.Loci, l)
	p.Partitions = append(p.Partitions, Partition{Index: len(p.Loci), Locus: l.ID, Start: start, End: p.Total})
	return p.Total > p.Target
}

// Select picks loci, in discovery order, under the given policy.
// nTaxa is the number of taxa of the run, the highest possible number of
// taxa present in a locus.
func Select(all []*loci.Locus, target int, policy Policy, nTaxa int) *Plan {
	plan := &Plan{Policy: policy, Target: target}
	switch policy {
	case MostSpecies:
	tiers:
		for count := nTaxa; count >= 2; count-- {
			for _, l := range all {
				if l.Present() == count && plan.add(l) {
					break tiers
				}
			}
		}
	default:
		for _, l := range all {
			if plan.add(l) {
				break
			}
		}
	}
	return plan
}
