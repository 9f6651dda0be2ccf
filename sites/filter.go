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

package sites

import (
	"github.com/exascience/pargo/parallel"
	"github.com/exascience/sisrs/config"
)

// Variant selects which variable sites a filtered alignment keeps.
type Variant int

const (
	// AllVariable keeps sites with at least two different bases.
	AllVariable Variant = iota
	// NoSingletons keeps sites where at least two bases each occur in
	// at least two rows.
	NoSingletons
	// Biallelic keeps sites with exactly two different bases.
	Biallelic
)

// Variants lists all variants in output order.
var Variants = []Variant{AllVariable, NoSingletons, Biallelic}

// Suffix distinguishes the output files of the variant.
func (v Variant) Suffix() string {
	switch v {
	case NoSingletons:
		return "_pi"
	case Biallelic:
		return "_bi"
	default:
		return ""
	}
}

func (v Variant) String() string {
	switch v {
	case NoSingletons:
		return string(config.NoSingletons)
	case Biallelic:
		return string(config.BiallelicOnly)
	default:
		return string(config.AllVariable)
	}
}

// VariantOf returns the variant that a site filter selects.
func VariantOf(f config.SiteFilter) Variant {
	switch f {
	case config.NoSingletons:
		return NoSingletons
	case config.BiallelicOnly:
		return Biallelic
	default:
		return AllVariable
	}
}

func baseCounts(c *Column) (counts [4]int) {
	for row, ok := c.Present.NextSet(0); ok; row, ok = c.Present.NextSet(row + 1) {
		switch c.Bases[row] {
		case 'A':
			counts[0]++
		case 'C':
			counts[1]++
		case 'G':
			counts[2]++
		case 'T':
			counts[3]++
		}
	}
	return counts
}

// Keeps reports whether the variant keeps a site.
func (v Variant) Keeps(c *Column) bool {
	alleles, shared := 0, 0
	for _, n := range baseCounts(c) {
		if n > 0 {
			alleles++
		}
		if n > 1 {
			shared++
		}
	}
	switch v {
	case NoSingletons:
		return shared >= 2
	case Biallelic:
		return alleles == 2
	default:
		return alleles >= 2
	}
}

func (a *Alignment) filter(keep func(*Column) bool) *Alignment {
	keeps := make([]bool, len(a.Columns))
	parallel.Range(0, len(a.Columns), 0, func(low, high int) {
		for i := low; i < high; i++ {
			keeps[i] = keep(a.Columns[i])
		}
	})
	result := &Alignment{Rows: a.Rows}
	for i, c := range a.Columns {
		if keeps[i] {
			result.Columns = append(result.Columns, c)
		}
	}
	return result
}

// FilterMissing keeps the sites at which at most missing rows lack a
// call. Invariant sites are kept.
func (a *Alignment) FilterMissing(missing int) *Alignment {
	return a.filter(func(c *Column) bool {
		return c.MissingRows() <= missing
	})
}

// Filter keeps the variable sites of the variant at which at most
// missing rows lack a call. Filtering an alignment again with the same
// arguments returns the same alignment.
func (a *Alignment) Filter(missing int, v Variant) *Alignment {
	return a.filter(func(c *Column) bool {
		return c.MissingRows() <= missing && v.Keeps(c)
	})
}
