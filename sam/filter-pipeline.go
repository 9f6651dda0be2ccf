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

	"github.com/exascience/pargo/pipeline"
)

// FilterStats counts the alignments seen by FilterFile.
type FilterStats struct {
	Kept, Removed int
}

type filteredBatch struct {
	lines   []string
	removed int
}

// FilterFile copies the SAM file input to output, keeping the header
// and the alignments accepted by all filters. Alignments are parsed
// and filtered in parallel, and written in input order.
func FilterFile(input, output string, filters ...AlignmentFilter) (stats FilterStats, err error) {
	in, err := os.Open(input)
	if err != nil {
		return stats, err
	}
	defer func() {
		if nerr := in.Close(); err == nil {
			err = nerr
		}
	}()
	if err = os.MkdirAll(filepath.Dir(output), 0700); err != nil {
		return stats, err
	}
	out, err := os.Create(output)
	if err != nil {
		return stats, err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	writer := bufio.NewWriter(out)
	filter := ComposeFilters(filters...)

	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(bufio.NewReader(in)))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		batch := filteredBatch{lines: make([]string, 0, len(strs))}
		for _, str := range strs {
			if str == "" {
				continue
			}
			if IsHeader(str) {
				batch.lines = append(batch.lines, str)
				continue
			}
			aln, err := ParseAlignment(str)
			if err != nil {
				p.SetErr(fmt.Errorf("%v, in SAM file %v", err, input))
				return batch
			}
			if filter(aln) {
				batch.lines = append(batch.lines, str)
			} else {
				batch.removed++
			}
		}
		return batch
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		batch := data.(filteredBatch)
		for _, line := range batch.lines {
			if !IsHeader(line) {
				stats.Kept++
			}
			if _, err := writer.WriteString(line); err != nil {
				p.SetErr(err)
				return data
			}
			if err := writer.WriteByte('\n'); err != nil {
				p.SetErr(err)
				return data
			}
		}
		stats.Removed += batch.removed
		return data
	})))
	p.Run()
	if err = p.Err(); err != nil {
		return stats, err
	}
	return stats, writer.Flush()
}
