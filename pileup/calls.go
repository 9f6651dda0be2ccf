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

package pileup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/exascience/sisrs/fasta"
)

// PrunedContigs derives a taxon-specific contig set from a pileup of
// the taxon on the composite genome. Only contigs with at least one
// covered site are kept, and every covered site gets the taxon's
// majority base. Coordinates are not changed, so sites of different
// taxa remain comparable.
func PrunedContigs(composite []fasta.Record, pileupFile string) ([]fasta.Record, error) {
	index := make(map[string]int, len(composite))
	for i, r := range composite {
		index[r.ID] = i
	}
	pruned := make(map[int][]byte)
	err := ScanFile(pileupFile, func(sites []Site) error {
		for i := range sites {
			site := &sites[i]
			k, ok := index[site.Contig]
			if !ok {
				return fmt.Errorf("contig %v of pileup file %v not in composite genome", site.Contig, pileupFile)
			}
			seq, ok := pruned[k]
			if !ok {
				seq = append([]byte(nil), composite[k].Seq...)
				pruned[k] = seq
			}
			if site.Pos < 1 || site.Pos > len(seq) {
				return fmt.Errorf("position %v out of range for contig %v in pileup file %v", site.Pos, site.Contig, pileupFile)
			}
			if b := Call(site.Counts, 1, 0); b != 'N' {
				seq[site.Pos-1] = b
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := make([]fasta.Record, 0, len(pruned))
	for i, r := range composite {
		if seq, ok := pruned[i]; ok {
			result = append(result, fasta.Record{ID: r.ID, Seq: seq})
		}
	}
	return result, nil
}

// WriteFixedSites calls bases in a pileup file and writes one
// contig/pos<TAB>base line per called site. It returns the number of
// called and unresolved sites.
func WriteFixedSites(pileupFile, filename string, minReads int, threshold float64) (called, unresolved int, err error) {
	if err = os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return 0, 0, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	out := bufio.NewWriter(f)
	err = ScanFile(pileupFile, func(sites []Site) error {
		for i := range sites {
			site := &sites[i]
			b := Call(site.Counts, minReads, threshold)
			if b == 'N' {
				unresolved++
				continue
			}
			called++
			if _, err := fmt.Fprintf(out, "%v\t%c\n", Key(site.Contig, site.Pos), b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return called, unresolved, err
	}
	return called, unresolved, out.Flush()
}

// Consensus holds the allele sequences of one covered reference contig.
type Consensus struct {
	Contig  string
	Alleles [][]byte
}

// BuildConsensus derives ploidy allele sequences for every reference
// contig covered in a pileup file. Sites that are not covered by at
// least minReads reads are gaps. Contigs without any covered site are
// left out.
func BuildConsensus(reference []fasta.Record, pileupFile string, minReads, ploidy int) ([]Consensus, error) {
	index := make(map[string]int, len(reference))
	for i, r := range reference {
		index[r.ID] = i
	}
	alleles := make(map[int][][]byte)
	err := ScanFile(pileupFile, func(sites []Site) error {
		for i := range sites {
			site := &sites[i]
			k, ok := index[site.Contig]
			if !ok {
				return fmt.Errorf("contig %v of pileup file %v not in reference", site.Contig, pileupFile)
			}
			seqs, ok := alleles[k]
			if !ok {
				seqs = make([][]byte, ploidy)
				for j := range seqs {
					seqs[j] = make([]byte, len(reference[k].Seq))
					for p := range seqs[j] {
						seqs[j][p] = '-'
					}
				}
				alleles[k] = seqs
			}
			if site.Pos < 1 || site.Pos > len(reference[k].Seq) {
				return fmt.Errorf("position %v out of range for contig %v in pileup file %v", site.Pos, site.Contig, pileupFile)
			}
			for j, b := range Alleles(site.Counts, minReads, ploidy) {
				seqs[j][site.Pos-1] = b
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result := make([]Consensus, 0, len(alleles))
	for i, r := range reference {
		if seqs, ok := alleles[i]; ok && !allGaps(seqs) {
			result = append(result, Consensus{Contig: r.ID, Alleles: seqs})
		}
	}
	return result, nil
}

func allGaps(seqs [][]byte) bool {
	for _, s := range seqs {
		if !fasta.AllMissing(s) {
			return false
		}
	}
	return true
}
