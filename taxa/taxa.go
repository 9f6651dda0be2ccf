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

// Package taxa discovers the taxa of a run and their read files.
package taxa

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Taxon is one species or sample: a directory of short-read files.
type Taxon struct {
	ID    string
	Dir   string
	Reads []string
}

// HasReads reports whether the taxon has at least one read file.
func (t *Taxon) HasReads() bool {
	return len(t.Reads) > 0
}

// Set is the ordered set of taxa of a run. The order is by ID and does
// not change during a run.
type Set struct {
	taxa  []*Taxon
	index map[string]int
}

var readExtensions = []string{".fastq", ".fq", ".fastq.gz", ".fq.gz"}

// IsReadFile reports whether name has a FASTQ extension.
func IsReadFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range readExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Discover returns one taxon for each subdirectory of dataDir, except
// for the names in reserved, which are the directories written by sisrs
// itself.
func Discover(dataDir string, reserved ...string) (*Set, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("taxa: %w", err)
	}
	skip := make(map[string]bool, len(reserved))
	for _, r := range reserved {
		skip[r] = true
	}
	var taxa []*Taxon
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || skip[name] || strings.HasPrefix(name, ".") {
			continue
		}
		dir := filepath.Join(dataDir, name)
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("taxa: %w", err)
		}
		taxon := &Taxon{ID: name, Dir: dir}
		for _, file := range files {
			if !file.IsDir() && IsReadFile(file.Name()) {
				taxon.Reads = append(taxon.Reads, filepath.Join(dir, file.Name()))
			}
		}
		sort.Strings(taxon.Reads)
		taxa = append(taxa, taxon)
	}
	return New(taxa...)
}

// New builds a Set from the given taxa, sorting them by ID.
func New(taxa ...*Taxon) (*Set, error) {
	sorted := append([]*Taxon(nil), taxa...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	index := make(map[string]int, len(sorted))
	for i, taxon := range sorted {
		if _, ok := index[taxon.ID]; ok {
			return nil, fmt.Errorf("taxa: duplicate taxon %v", taxon.ID)
		}
		index[taxon.ID] = i
	}
	return &Set{taxa: sorted, index: index}, nil
}

// Len returns the number of taxa.
func (s *Set) Len() int {
	return len(s.taxa)
}

// All returns the taxa in run order. The result must not be modified.
func (s *Set) All() []*Taxon {
	return s.taxa
}

// IDs returns the taxon identifiers in run order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.taxa))
	for i, taxon := range s.taxa {
		ids[i] = taxon.ID
	}
	return ids
}

// Index returns the position of the taxon with the given ID.
func (s *Set) Index(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// Get returns the taxon with the given ID.
func (s *Set) Get(id string) (*Taxon, bool) {
	if i, ok := s.index[id]; ok {
		return s.taxa[i], true
	}
	return nil, false
}

// WithoutReads returns the IDs of the taxa that have no read files.
func (s *Set) WithoutReads() (ids []string) {
	for _, taxon := range s.taxa {
		if !taxon.HasReads() {
			ids = append(ids, taxon.ID)
		}
	}
	return ids
}

// RowNames returns the alignment row names for the given ploidy: the
// taxon IDs for haploid data, and <taxon>_1, <taxon>_2 otherwise.
func (s *Set) RowNames(ploidy int) []string {
	rows := make([]string, 0, len(s.taxa)*ploidy)
	for _, taxon := range s.taxa {
		rows = append(rows, RowNames(taxon.ID, ploidy)...)
	}
	return rows
}

// RowNames returns the alignment row names of a single taxon.
func RowNames(id string, ploidy int) []string {
	if ploidy <= 1 {
		return []string{id}
	}
	rows := make([]string, ploidy)
	for i := range rows {
		rows[i] = fmt.Sprintf("%v_%v", id, i+1)
	}
	return rows
}
