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

// Package loci builds multi-taxon locus alignments from the reads of
// every taxon aligned to its loci reference.
package loci

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/taxa"
)

// Locus is an aligned locus. Rows maps row names to sequences of equal
// Length; Taxa holds the indices of the taxa with at least one row.
type Locus struct {
	ID     string
	Rank   int
	Taxa   *bitset.BitSet
	Rows   map[string][]byte
	Length int
}

// Present is the number of taxa with data for the locus.
func (l *Locus) Present() int {
	return int(l.Taxa.Count())
}

// Lost is a locus discarded because too many taxa lack data.
type Lost struct {
	ID      string
	Present int
	Absent  int
}

// Group holds the unaligned rows of a locus, in taxon order.
type Group struct {
	ID   string
	Rank int
	Rows []fasta.Record
	Taxa *bitset.BitSet
}

// Absent is the number of taxa without a row.
func (g *Group) Absent(nTaxa int) int {
	return nTaxa - int(g.Taxa.Count())
}

// alleleID names the record of the i-th allele of a locus in a per-taxon
// consensus file.
func alleleID(locus string, i, ploidy int) string {
	if ploidy <= 1 {
		return locus
	}
	return fmt.Sprintf("%v_%v", locus, i+1)
}

// splitAlleleID is the inverse of alleleID.
func splitAlleleID(id string, ploidy int) (locus string, allele int, err error) {
	if ploidy <= 1 {
		return id, 0, nil
	}
	i := strings.LastIndexByte(id, '_')
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid allele record %v", id)
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 1 || n > ploidy {
		return "", 0, fmt.Errorf("invalid allele record %v", id)
	}
	return id[:i], n - 1, nil
}

// Regroup turns the per-taxon consensus records into per-locus groups.
// perTaxon is indexed like the taxa of set. Rows without any base are
// left out. Groups are ranked by order; loci not listed in order follow
// in order of first appearance.
func Regroup(set *taxa.Set, perTaxon [][]fasta.Record, ploidy int, order []string) ([]*Group, error) {
	index := make(map[string]*Group)
	var groups []*Group
	group := func(id string) *Group {
		g, ok := index[id]
		if !ok {
			g = &Group{ID: id, Taxa: bitset.New(uint(set.Len()))}
			index[id] = g
			groups = append(groups, g)
		}
		return g
	}
	for _, id := range order {
		group(id)
	}
	for ti, taxon := range set.All() {
		rows := taxa.RowNames(taxon.ID, ploidy)
		for _, r := range perTaxon[ti] {
			locus, allele, err := splitAlleleID(r.ID, ploidy)
			if err != nil {
				return nil, fmt.Errorf("taxon %v: %w", taxon.ID, err)
			}
			if fasta.AllMissing(r.Seq) {
				continue
			}
			g := group(locus)
			g.Rows = append(g.Rows, fasta.Record{ID: rows[allele], Seq: r.Seq})
			g.Taxa.Set(uint(ti))
		}
	}
	result := groups[:0]
	for _, g := range groups {
		if len(g.Rows) > 0 {
			g.Rank = len(result)
			result = append(result, g)
		}
	}
	return result, nil
}

// Trim splits groups into the ones that at most missing taxa lack, and
// the lost ones.
func Trim(groups []*Group, nTaxa, missing int) (kept []*Group, lost []Lost) {
	for _, g := range groups {
		if absent := g.Absent(nTaxa); absent > missing {
			lost = append(lost, Lost{ID: g.ID, Present: nTaxa - absent, Absent: absent})
		} else {
			kept = append(kept, g)
		}
	}
	return kept, lost
}

// FromAligned builds the locus of a group from its aligned rows. Columns
// without any base in any row are dropped.
func FromAligned(g *Group, aligned []fasta.Record) (*Locus, error) {
	length := -1
	for _, r := range aligned {
		if length >= 0 && len(r.Seq) != length {
			return nil, fmt.Errorf("locus %v: rows of different lengths in alignment", g.ID)
		}
		length = len(r.Seq)
	}
	if len(aligned) != len(g.Rows) {
		return nil, fmt.Errorf("locus %v: %v rows aligned, expected %v", g.ID, len(aligned), len(g.Rows))
	}
	var keep []int
	for j := 0; j < length; j++ {
		for _, r := range aligned {
			if !fasta.IsMissing(r.Seq[j]) {
				keep = append(keep, j)
				break
			}
		}
	}
	locus := &Locus{ID: g.ID, Rank: g.Rank, Taxa: g.Taxa.Clone(), Rows: make(map[string][]byte, len(aligned)), Length: len(keep)}
	for _, r := range aligned {
		seq := make([]byte, len(keep))
		for i, j := range keep {
			seq[i] = r.Seq[j]
		}
		locus.Rows[r.ID] = seq
	}
	return locus, nil
}
