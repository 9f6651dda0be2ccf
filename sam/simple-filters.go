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

// An AlignmentFilter returns true for alignments that are kept.
type AlignmentFilter func(aln *Alignment) bool

/*
A filter for removing unmapped sam-alignment instances, based on FLAG.
*/
func FilterUnmappedReads(aln *Alignment) bool {
	return !aln.IsUnmapped()
}

/*
A filter for removing reads that also align elsewhere. Aligners such as
bowtie2 report the score of the best other alignment in the XS optional
field, so any read carrying it is not uniquely mapped.
*/
func FilterMultiMappedReads(aln *Alignment) bool {
	return !aln.HasTag("XS")
}

// UniquelyMapped is the filter applied to all aligner output.
var UniquelyMapped = []AlignmentFilter{FilterUnmappedReads, FilterMultiMappedReads}

// ComposeFilters returns a filter that keeps an alignment only if all
// given filters keep it.
func ComposeFilters(filters ...AlignmentFilter) AlignmentFilter {
	return func(aln *Alignment) bool {
		for _, f := range filters {
			if !f(aln) {
				return false
			}
		}
		return true
	}
}
