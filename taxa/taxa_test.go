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

package taxa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("@r\nACGT\n+\nIIII\n"), 0600))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "PanTro", "reads_2.fastq.gz"))
	touch(t, filepath.Join(dir, "PanTro", "reads_1.fastq.gz"))
	touch(t, filepath.Join(dir, "PanTro", "notes.txt"))
	touch(t, filepath.Join(dir, "GorGor", "a.fq"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "HomSap"), 0700))
	touch(t, filepath.Join(dir, "composite", "contigs.fa"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".sisrs"), 0700))

	set, err := Discover(dir, "composite")
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"GorGor", "HomSap", "PanTro"}, set.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	pan, ok := set.Get("PanTro")
	require.True(t, ok)
	assert.Equal(t, []string{
		filepath.Join(dir, "PanTro", "reads_1.fastq.gz"),
		filepath.Join(dir, "PanTro", "reads_2.fastq.gz"),
	}, pan.Reads)
	assert.Equal(t, []string{"HomSap"}, set.WithoutReads())

	i, ok := set.Index("PanTro")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(&Taxon{ID: "a"}, &Taxon{ID: "a"})
	assert.Error(t, err)
}

func TestRowNames(t *testing.T) {
	set, err := New(&Taxon{ID: "b"}, &Taxon{ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.RowNames(1))
	assert.Equal(t, []string{"a_1", "a_2", "b_1", "b_2"}, set.RowNames(2))
}

func TestIsReadFile(t *testing.T) {
	for name, want := range map[string]bool{
		"x.fastq": true, "x.FQ": true, "x.fq.gz": true, "x.fastq.gz": true,
		"x.fa": false, "x.bam": false, "fastq": false,
	} {
		assert.Equal(t, want, IsReadFile(name), name)
	}
}
