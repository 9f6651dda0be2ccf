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

// Package sites builds sites alignments from the fixed sites called
// for every taxon, and filters them for missing data.
//
// An alignment is stored by column. Every column is one site, keyed by
// contig/pos, with one base per row and the set of rows that have a
// call. Rows are taxa, in run order.
package sites

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/nexus"
	"github.com/evolbioinfo/goalign/io/phylip"
	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"
	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/pileup"
)

// Missing is the symbol of a row without a call at a site.
const Missing = 'N'

// Column is one site of an alignment.
type Column struct {
	Key     string
	Bases   []byte
	Present *bitset.BitSet

	contig string
	pos    int
}

func newColumn(key string, nRows int) (*Column, error) {
	contig, pos, err := pileup.SplitKey(key)
	if err != nil {
		return nil, err
	}
	bases := make([]byte, nRows)
	for i := range bases {
		bases[i] = Missing
	}
	return &Column{Key: key, Bases: bases, Present: bitset.New(uint(nRows)), contig: contig, pos: pos}, nil
}

func (c *Column) set(row int, base byte) {
	c.Bases[row] = base
	c.Present.Set(uint(row))
}

// MissingRows is the number of rows without a call.
func (c *Column) MissingRows() int {
	return len(c.Bases) - int(c.Present.Count())
}

// Contig returns the contig of the site.
func (c *Column) Contig() string { return c.contig }

// Alignment is a sites alignment.
type Alignment struct {
	Rows    []string
	Columns []*Column
}

// Len returns the number of sites.
func (a *Alignment) Len() int {
	return len(a.Columns)
}

// Keys returns the contig/pos keys of all sites, in column order.
func (a *Alignment) Keys() []string {
	keys := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		keys[i] = c.Key
	}
	return keys
}

// Contigs returns the contigs that have at least one site, in order of
// first appearance.
func (a *Alignment) Contigs() []string {
	var contigs []string
	seen := make(map[string]bool)
	for _, c := range a.Columns {
		if !seen[c.contig] {
			seen[c.contig] = true
			contigs = append(contigs, c.contig)
		}
	}
	return contigs
}

// Row returns the sequence of the i-th row.
func (a *Alignment) Row(i int) []byte {
	seq := make([]byte, len(a.Columns))
	for j, c := range a.Columns {
		seq[j] = c.Bases[i]
	}
	return seq
}

type columnSorter []*Column

func columnLess(c1, c2 *Column) bool {
	if c1.contig != c2.contig {
		return c1.contig < c2.contig
	}
	return c1.pos < c2.pos
}

func (s columnSorter) SequentialSort(i, j int) {
	cols := s[i:j]
	sort.SliceStable(cols, func(i, j int) bool { return columnLess(cols[i], cols[j]) })
}

func (s columnSorter) NewTemp() psort.StableSorter {
	return make(columnSorter, len(s))
}

func (s columnSorter) Len() int {
	return len(s)
}

func (s columnSorter) Less(i, j int) bool {
	return columnLess(s[i], s[j])
}

func (s columnSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(columnSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// ReadFixedSites reads a contig/pos<TAB>base file written by
// pileup.WriteFixedSites.
func ReadFixedSites(filename string) (calls map[string]byte, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	calls = make(map[string]byte)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 || len(fields[1]) != 1 {
			return nil, fmt.Errorf("invalid fixed site %q in %v", line, filename)
		}
		calls[fields[0]] = fasta.ToUpperAndN(fields[1][0])
	}
	return calls, scanner.Err()
}

// Merge combines the fixed sites of all rows into one alignment, with
// columns sorted by contig and position. fixedSites[i] is the file of
// rows[i]; an empty name stands for a row without any call.
func Merge(rows []string, fixedSites []string) (*Alignment, error) {
	if len(rows) != len(fixedSites) {
		return nil, fmt.Errorf("%v rows, but %v fixed site files", len(rows), len(fixedSites))
	}
	calls := make([]map[string]byte, len(rows))
	errs := make([]error, len(rows))
	parallel.Range(0, len(rows), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if fixedSites[i] != "" {
				calls[i], errs[i] = ReadFixedSites(fixedSites[i])
			}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	index := make(map[string]*Column)
	var columns []*Column
	for row, rowCalls := range calls {
		for key, base := range rowCalls {
			if fasta.IsMissing(base) {
				continue
			}
			col, ok := index[key]
			if !ok {
				var err error
				if col, err = newColumn(key, len(rows)); err != nil {
					return nil, err
				}
				index[key] = col
				columns = append(columns, col)
			}
			col.set(row, base)
		}
	}
	psort.StableSort(columnSorter(columns))
	return &Alignment{Rows: append([]string(nil), rows...), Columns: columns}, nil
}

// Goalign converts a to a goalign alignment.
func (a *Alignment) Goalign() (align.Alignment, error) {
	al := align.NewAlign(align.NUCLEOTIDS)
	for i, name := range a.Rows {
		if err := al.AddSequence(name, string(a.Row(i)), ""); err != nil {
			return nil, err
		}
	}
	return al, nil
}

func writeString(filename, data string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(data), 0644)
}

// WriteNexus writes a as a NEXUS file and its keys as a locs file.
func (a *Alignment) WriteNexus(nexFile, locsFile string) error {
	al, err := a.Goalign()
	if err != nil {
		return err
	}
	if err := writeString(nexFile, nexus.WriteAlignment(al)); err != nil {
		return err
	}
	return WriteLocs(locsFile, a.Keys())
}

// WritePhylip writes a as a relaxed PHYLIP file.
func (a *Alignment) WritePhylip(filename string) error {
	al, err := a.Goalign()
	if err != nil {
		return err
	}
	return writeString(filename, phylip.WriteAlignment(al, false, true, false))
}

// WriteLocs writes one key per line.
func WriteLocs(filename string, keys []string) error {
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('\n')
	}
	return writeString(filename, sb.String())
}

// ReadLocs reads a file written by WriteLocs.
func ReadLocs(filename string) (keys []string, err error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			keys = append(keys, line)
		}
	}
	return keys, nil
}

// ReadNexus reads an alignment written by WriteNexus.
func ReadNexus(nexFile, locsFile string) (result *Alignment, err error) {
	keys, err := ReadLocs(locsFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(nexFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	al, err := nexus.NewParser(bufio.NewReader(f)).Parse()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", nexFile, err)
	}
	if al.NbSequences() > 0 && al.Length() != len(keys) {
		return nil, fmt.Errorf("%v has %v sites, but %v lists %v", nexFile, al.Length(), locsFile, len(keys))
	}
	result = &Alignment{Rows: make([]string, al.NbSequences())}
	seqs := make([]string, al.NbSequences())
	for i := range result.Rows {
		name, ok := al.GetSequenceNameById(i)
		if !ok {
			return nil, fmt.Errorf("%v: no name for sequence %v", nexFile, i)
		}
		seq, ok := al.GetSequenceById(i)
		if !ok || len(seq) != len(keys) {
			return nil, fmt.Errorf("%v: sequence %v has %v sites, expected %v", nexFile, name, len(seq), len(keys))
		}
		result.Rows[i], seqs[i] = name, seq
	}
	result.Columns = make([]*Column, len(keys))
	for j, key := range keys {
		col, err := newColumn(key, len(seqs))
		if err != nil {
			return nil, err
		}
		for i, seq := range seqs {
			if b := fasta.ToUpperAndN(seq[j]); !fasta.IsMissing(b) {
				col.set(i, b)
			}
		}
		result.Columns[j] = col
	}
	return result, nil
}
