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

package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

func init() {
	// aligned loci carry gap symbols, and consensus sequences may carry
	// any IUPAC code
	seq.ValidateSeq = false
}

// Record is a named sequence.
type Record struct {
	ID  string
	Seq []byte
}

// LineWidth is the number of bases per line in written FASTA files.
const LineWidth = 60

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
	'-': '-', '.': '-', '?': '-',
}

// ToUpperAndN normalizes ambiguity codes to N, gap codes to '-', and
// converts all bases to upper case. Unknown symbols are returned as is.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

// IsMissing reports whether base carries no information: a gap, an N,
// or any ambiguity code.
func IsMissing(base byte) bool {
	switch ToUpperAndN(base) {
	case 'A', 'C', 'G', 'T':
		return false
	default:
		return true
	}
}

// AllMissing reports whether every base of s is missing.
func AllMissing(s []byte) bool {
	for _, b := range s {
		if !IsMissing(b) {
			return false
		}
	}
	return true
}

// ReadFile parses a (possibly gzipped) FASTA file, keeping the order of
// the records. Sequences are normalized with ToUpperAndN.
func ReadFile(filename string) (records []Record, err error) {
	reader, err := fastx.NewDefaultReader(filename)
	if err != nil {
		return nil, fmt.Errorf("%v, while opening FASTA file %v", err, filename)
	}
	defer reader.Close()
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%v, while parsing FASTA file %v", err, filename)
		}
		s := make([]byte, len(record.Seq.Seq))
		for i, c := range record.Seq.Seq {
			s[i] = ToUpperAndN(c)
		}
		records = append(records, Record{ID: string(record.ID), Seq: s})
	}
	return records, nil
}

// Map indexes records by ID.
func Map(records []Record) map[string][]byte {
	m := make(map[string][]byte, len(records))
	for _, r := range records {
		m[r.ID] = r.Seq
	}
	return m
}

// WriteFile stores records in a FASTA file, creating the parent
// directory if necessary.
func WriteFile(filename string, records []Record) (err error) {
	if err = os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		nerr := f.Close()
		if err == nil {
			err = nerr
		}
	}()
	out := bufio.NewWriter(f)
	for _, r := range records {
		if _, err = fmt.Fprintf(out, ">%v\n", r.ID); err != nil {
			return err
		}
		for i := 0; i < len(r.Seq); i += LineWidth {
			j := i + LineWidth
			if j > len(r.Seq) {
				j = len(r.Seq)
			}
			if _, err = out.Write(r.Seq[i:j]); err != nil {
				return err
			}
			if err = out.WriteByte('\n'); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

// CopyReads copies reads from a (possibly gzipped) FASTQ or FASTA file
// to a plain file of the same kind, in order, until at least maxBases
// bases were copied. It returns the number of bases copied.
func CopyReads(src, dst string, maxBases int64) (bases int64, err error) {
	reader, err := fastx.NewDefaultReader(src)
	if err != nil {
		return 0, fmt.Errorf("%v, while opening read file %v", err, src)
	}
	defer reader.Close()
	if err = os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return 0, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer func() {
		nerr := f.Close()
		if err == nil {
			err = nerr
		}
	}()
	out := bufio.NewWriter(f)
	for bases < maxBases {
		record, rerr := reader.Read()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return bases, fmt.Errorf("%v, while parsing read file %v", rerr, src)
		}
		if len(record.Seq.Qual) > 0 {
			_, err = fmt.Fprintf(out, "@%s\n%s\n+\n%s\n", record.Name, record.Seq.Seq, record.Seq.Qual)
		} else {
			_, err = fmt.Fprintf(out, ">%s\n%s\n", record.Name, record.Seq.Seq)
		}
		if err != nil {
			return bases, err
		}
		bases += int64(len(record.Seq.Seq))
	}
	return bases, out.Flush()
}
