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

// Package sam filters the SAM text written by the short-read aligner
// before it is handed to samtools for sorting and indexing.
//
// Only the mandatory fields needed for filtering are parsed. Lines are
// passed through unchanged, so the output is byte-identical to the
// kept input lines.
package sam

import (
	"fmt"
	"strconv"
	"strings"
)

// Flag bits, see http://samtools.github.io/hts-specs/SAMv1.pdf - Section 1.4.
const (
	Unmapped  = 0x4
	Reversed  = 0x10
	Secondary = 0x100
)

// Alignment holds the fields of a SAM alignment line used by the
// filters.
type Alignment struct {
	QNAME string
	FLAG  uint16
	RNAME string
	POS   int32
	TAGS  []string

	line string
}

// Line returns the original text of the alignment.
func (aln *Alignment) Line() string { return aln.line }

func (aln *Alignment) IsUnmapped() bool  { return (aln.FLAG & Unmapped) != 0 }
func (aln *Alignment) IsReversed() bool  { return (aln.FLAG & Reversed) != 0 }
func (aln *Alignment) IsSecondary() bool { return (aln.FLAG & Secondary) != 0 }

// HasTag reports whether the alignment carries an optional field with
// the given two-letter tag.
func (aln *Alignment) HasTag(tag string) bool {
	for _, t := range aln.TAGS {
		if len(t) > 2 && t[:2] == tag && t[2] == ':' {
			return true
		}
	}
	return false
}

// IsHeader reports whether line is a SAM header line.
func IsHeader(line string) bool {
	return strings.HasPrefix(line, "@")
}

// ParseAlignment parses a SAM alignment line.
func ParseAlignment(line string) (*Alignment, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 11 {
		return nil, fmt.Errorf("invalid SAM alignment line %v - %v fields", line, len(fields))
	}
	flag, err := strconv.ParseUint(fields[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%v, while parsing FLAG of SAM alignment line %v", err, line)
	}
	pos, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%v, while parsing POS of SAM alignment line %v", err, line)
	}
	return &Alignment{
		QNAME: fields[0],
		FLAG:  uint16(flag),
		RNAME: fields[2],
		POS:   int32(pos),
		TAGS:  fields[11:],
		line:  line,
	}, nil
}
