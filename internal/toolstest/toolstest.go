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

// Package toolstest provides shell scripts that stand in for the
// external tools in tests.
//
// The scripts pass the names of the read files through the files they
// write: an alignment of reads r1,r2 is a SAM header with one @CO line
// per read file, sorting and merging keep those lines, and a pileup of
// such a file is the concatenation of r1.pileup and r2.pileup, for the
// files that exist. The assemblers write the given composite genome and
// mafft returns its input unchanged.
package toolstest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/exascience/sisrs/config"
)

const bowtie2 = `#!/bin/sh
fa=
while [ $# -gt 0 ]; do
	case "$1" in
	-U) reads="$2"; shift ;;
	-S) out="$2"; shift ;;
	-f) fa=1 ;;
	esac
	shift
done
printf '@HD\tVN:1.6\n' > "$out"
if [ -n "$fa" ]; then
	grep '^>' "$reads" | cut -c2- | cut -d' ' -f1 | while read -r name; do
		printf '%s\t0\tref\t1\t42\t1M\t*\t0\t0\t*\t*\n' "$name" >> "$out"
	done
	exit 0
fi
echo "$reads" | tr ',' '\n' | while read -r r; do
	printf '@CO\t%s\n' "$r" >> "$out"
done
`

const bowtie2Build = `#!/bin/sh
for last; do :; done
touch "$last.1.bt2"
`

const samtools = `#!/bin/sh
cmd="$1"
shift
case "$cmd" in
sort)
	while [ $# -gt 1 ]; do
		case "$1" in -o) out="$2"; shift ;; esac
		shift
	done
	cp "$1" "$out" ;;
merge)
	shift 3
	out="$1"
	shift
	cat "$@" > "$out" ;;
index)
	touch "$1.bai" ;;
faidx)
	touch "$1.fai" ;;
mpileup)
	out="$4"
	: > "$out"
	grep '^@CO' "$5" | cut -f2 | while read -r r; do
		if [ -f "$r.pileup" ]; then cat "$r.pileup" >> "$out"; fi
	done ;;
*)
	echo "unknown samtools command $cmd" >&2
	exit 1 ;;
esac
`

const mafft = `#!/bin/sh
for last; do :; done
cat "$last"
`

// Fake writes the scripts to a temporary directory and returns the
// tool configuration that invokes them. The assemblers produce
// composite, a FASTA text.
func Fake(t testing.TB, composite string) config.Tools {
	t.Helper()
	dir := t.TempDir()
	contigs := filepath.Join(dir, "composite.fa")
	if err := os.WriteFile(contigs, []byte(composite), 0644); err != nil {
		t.Fatal(err)
	}
	scripts := map[string]string{
		"velveth":       "#!/bin/sh\nmkdir -p \"$1\"\n",
		"velvetg":       "#!/bin/sh\ncp '" + contigs + "' \"$1/contigs.fa\"\n",
		"minia":         "#!/bin/sh\nfor last; do :; done\ncp '" + contigs + "' \"$last.contigs.fa\"\n",
		"bowtie2":       bowtie2,
		"bowtie2-build": bowtie2Build,
		"samtools":      samtools,
		"mafft":         mafft,
	}
	for name, script := range scripts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return config.Tools{
		Velveth:      filepath.Join(dir, "velveth"),
		Velvetg:      filepath.Join(dir, "velvetg"),
		Minia:        filepath.Join(dir, "minia"),
		Bowtie2:      filepath.Join(dir, "bowtie2"),
		Bowtie2Build: filepath.Join(dir, "bowtie2-build"),
		Samtools:     filepath.Join(dir, "samtools"),
		Mafft:        filepath.Join(dir, "mafft"),
	}
}

// Pileup writes the pileup that the fake samtools reports for the reads
// in readFile.
func Pileup(t testing.TB, readFile, pileup string) {
	t.Helper()
	if err := os.WriteFile(readFile+".pileup", []byte(pileup), 0644); err != nil {
		t.Fatal(err)
	}
}

// Reads is a FASTQ text of ten reads of ten bases.
var Reads = strings.Repeat("@r\nACGTACGTAC\n+\nIIIIIIIIII\n", 10)

// DataDir creates a data directory with one subdirectory per taxon in
// files, holding the given number of read files r1.fq, r2.fq, ...
func DataDir(t testing.TB, files map[string]int) string {
	t.Helper()
	dir := t.TempDir()
	for id, n := range files {
		if err := os.Mkdir(filepath.Join(dir, id), 0700); err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= n; i++ {
			if err := os.WriteFile(filepath.Join(dir, id, fmt.Sprintf("r%v.fq", i)), []byte(Reads), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	return dir
}
