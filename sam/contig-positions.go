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

package sam

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// WriteContigPositions translates the alignment of composite genome
// contigs to a reference genome into a table with one line per
// uniquely mapped contig: contig, reference sequence, 1-based position
// and strand.
func WriteContigPositions(samFile, output string) (mapped int, err error) {
	in, err := os.Open(samFile)
	if err != nil {
		return 0, err
	}
	defer func() {
		if nerr := in.Close(); err == nil {
			err = nerr
		}
	}()
	if err = os.MkdirAll(filepath.Dir(output), 0700); err != nil {
		return 0, err
	}
	out, err := os.Create(output)
	if err != nil {
		return 0, err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	writer := bufio.NewWriter(out)
	filter := ComposeFilters(UniquelyMapped...)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<28)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || IsHeader(line) {
			continue
		}
		aln, err := ParseAlignment(line)
		if err != nil {
			return mapped, fmt.Errorf("%v, in SAM file %v", err, samFile)
		}
		if aln.IsSecondary() || !filter(aln) {
			continue
		}
		strand := '+'
		if aln.IsReversed() {
			strand = '-'
		}
		if _, err := fmt.Fprintf(writer, "%v\t%v\t%v\t%c\n", aln.QNAME, aln.RNAME, aln.POS, strand); err != nil {
			return mapped, err
		}
		mapped++
	}
	if err = scanner.Err(); err != nil {
		return mapped, err
	}
	return mapped, writer.Flush()
}
