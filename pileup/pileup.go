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

// Package pileup parses samtools mpileup output and calls bases from
// the per-site base counts.
package pileup

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/exascience/pargo/pipeline"
)

// Site is one line of a single-sample mpileup file.
type Site struct {
	Contig string
	Pos    int // 1-based
	Ref    byte
	Counts [4]int // A, C, G, T
}

// Bases are the bases in Counts order.
const Bases = "ACGT"

func baseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return -1
	}
}

// Depth is the number of reads supporting an A, C, G or T.
func (s *Site) Depth() (depth int) {
	for _, c := range s.Counts {
		depth += c
	}
	return depth
}

// Key identifies a site across taxa as contig/pos.
func Key(contig string, pos int) string {
	return contig + "/" + strconv.Itoa(pos)
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (contig string, pos int, err error) {
	i := strings.LastIndexByte(key, '/')
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid site key %v", key)
	}
	pos, err = strconv.Atoi(key[i+1:])
	return key[:i], pos, err
}

// CountBases tallies the read bases column of an mpileup line. Matches
// ('.' and ',') count for ref. Read starts carry a mapping quality
// character, and indels carry their length and bases, which are all
// skipped.
func CountBases(ref byte, bases string) (counts [4]int) {
	refIndex := baseIndex(ref)
	for i := 0; i < len(bases); i++ {
		switch c := bases[i]; c {
		case '.', ',':
			if refIndex >= 0 {
				counts[refIndex]++
			}
		case '^':
			i++
		case '+', '-':
			j := i + 1
			for j < len(bases) && bases[j] >= '0' && bases[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(bases[i+1 : j])
			i = j + n - 1
		default:
			if k := baseIndex(c); k >= 0 {
				counts[k]++
			}
		}
	}
	return counts
}

// ParseLine parses one mpileup line. Only the first sample is used.
func ParseLine(line string) (site Site, err error) {
	fields := strings.SplitN(line, "\t", 6)
	if len(fields) < 4 {
		return site, fmt.Errorf("invalid pileup line %v", line)
	}
	site.Contig = fields[0]
	if site.Pos, err = strconv.Atoi(fields[1]); err != nil {
		return site, fmt.Errorf("%v, in pileup line %v", err, line)
	}
	if len(fields[2]) > 0 {
		site.Ref = fields[2][0]
	}
	if len(fields) >= 5 {
		site.Counts = CountBases(site.Ref, fields[4])
	}
	return site, nil
}

// ScanFile parses a pileup file in parallel and calls sink with
// batches of sites, in file order.
func ScanFile(filename string, sink func([]Site) error) (err error) {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(bufio.NewReader(f)))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		sites := make([]Site, 0, len(strs))
		for _, str := range strs {
			if str == "" {
				continue
			}
			site, err := ParseLine(str)
			if err != nil {
				p.SetErr(err)
				return sites
			}
			sites = append(sites, site)
		}
		return sites
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		if err := sink(data.([]Site)); err != nil {
			p.SetErr(err)
		}
		return data
	})))
	p.Run()
	return p.Err()
}

// major returns the index and count of the most frequent base, and
// whether it is unique.
func major(counts [4]int) (index, count int, unique bool) {
	index = -1
	for i, c := range counts {
		switch {
		case c > count:
			index, count, unique = i, c, true
		case c == count && c > 0:
			unique = false
		}
	}
	return
}

// Call returns the base called at a site, or 'N' if the site is
// unresolved: fewer than minReads reads, or a majority base with a
// frequency below threshold, or no single majority base.
func Call(counts [4]int, minReads int, threshold float64) byte {
	depth := 0
	for _, c := range counts {
		depth += c
	}
	if depth == 0 || depth < minReads {
		return 'N'
	}
	index, count, unique := major(counts)
	if !unique || float64(count)/float64(depth) < threshold {
		return 'N'
	}
	return Bases[index]
}

const (
	minorMinReads    = 2
	minorMinFraction = 0.2
)

// Alleles returns ploidy alleles for a site. Sites with fewer than
// minReads reads yield gaps. For diploid data, the second allele is the
// second most frequent base when it is supported by at least two reads
// and a fifth of the depth, and the major base otherwise.
func Alleles(counts [4]int, minReads, ploidy int) []byte {
	alleles := make([]byte, ploidy)
	depth := 0
	for _, c := range counts {
		depth += c
	}
	if depth == 0 || depth < minReads {
		for i := range alleles {
			alleles[i] = '-'
		}
		return alleles
	}
	index, count, unique := major(counts)
	first := byte('N')
	if unique {
		first = Bases[index]
	}
	for i := range alleles {
		alleles[i] = first
	}
	if ploidy < 2 {
		return alleles
	}
	if !unique {
		// equally frequent bases: report the first two of them
		k := 0
		for i, c := range counts {
			if c == count && k < 2 {
				alleles[k] = Bases[i]
				k++
			}
		}
		return alleles
	}
	second, secondCount := -1, 0
	for i, c := range counts {
		if i != index && c > secondCount {
			second, secondCount = i, c
		}
	}
	if second >= 0 && secondCount >= minorMinReads && float64(secondCount)/float64(depth) >= minorMinFraction {
		alleles[1] = Bases[second]
	}
	return alleles
}
