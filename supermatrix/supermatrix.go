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

// Package supermatrix concatenates the loci of a selection plan into one
// partitioned alignment.
package supermatrix

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolbioinfo/goalign/align"
	"github.com/evolbioinfo/goalign/io/nexus"
	"github.com/evolbioinfo/goalign/io/phylip"
	"github.com/exascience/sisrs/selection"
)

// Gap fills the span of a locus in rows without data for it.
const Gap = '-'

// Output file names.
const (
	PhylipFile     = "concatenated.phylip-relaxed"
	NexusFile      = "concatenated.nex"
	PartitionsFile = "partitions.txt"
	LociFile       = "loci.txt"
)

// Matrix is a concatenated alignment with one row per row name, and the
// partitions of its loci.
type Matrix struct {
	Rows       []string
	Seqs       [][]byte
	Partitions []selection.Partition
	Loci       []string
}

// Concatenate appends, for every row, the loci of the plan in plan
// order. The rows keep the given order, so matrices of different plans
// over the same rows can be compared directly.
func Concatenate(plan *selection.Plan, rows []string) *Matrix {
	m := &Matrix{
		Rows:       append([]string(nil), rows...),
		Seqs:       make([][]byte, len(rows)),
		Partitions: append([]selection.Partition(nil), plan.Partitions...),
		Loci:       make([]string, len(plan.Loci)),
	}
	for i, l := range plan.Loci {
		m.Loci[i] = l.ID
	}
	for i, row := range rows {
		seq := make([]byte, 0, plan.Total)
		for _, l := range plan.Loci {
			if s, ok := l.Rows[row]; ok {
				seq = append(seq, s...)
			} else {
				seq = append(seq, bytes.Repeat([]byte{Gap}, l.Length)...)
			}
		}
		m.Seqs[i] = seq
	}
	return m
}

// Length is the number of columns.
func (m *Matrix) Length() int {
	if len(m.Seqs) == 0 {
		return 0
	}
	return len(m.Seqs[0])
}

// Goalign converts m to a goalign alignment.
func (m *Matrix) Goalign() (align.Alignment, error) {
	al := align.NewAlign(align.NUCLEOTIDS)
	for i, row := range m.Rows {
		if err := al.AddSequence(row, string(m.Seqs[i]), ""); err != nil {
			return nil, err
		}
	}
	return al, nil
}

// Write stores the matrix in dir: as relaxed PHYLIP and NEXUS, with its
// partitions and the IDs of its loci.
func (m *Matrix) Write(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	al, err := m.Goalign()
	if err != nil {
		return err
	}
	var partitions, loci strings.Builder
	for _, p := range m.Partitions {
		fmt.Fprintln(&partitions, p)
	}
	for _, id := range m.Loci {
		fmt.Fprintln(&loci, id)
	}
	for _, file := range []struct{ name, data string }{
		{PhylipFile, phylip.WriteAlignment(al, false, true, false)},
		{NexusFile, nexus.WriteAlignment(al)},
		{PartitionsFile, partitions.String()},
		{LociFile, loci.String()},
	} {
		if err := os.WriteFile(filepath.Join(dir, file.name), []byte(file.data), 0644); err != nil {
			return err
		}
	}
	return nil
}
