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

package gateway

import (
	"context"
	"strconv"
	"strings"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/sam"
	"go.uber.org/zap"
)

// Tools builds the commands of the external tools with fixed
// arguments.
type Tools struct {
	paths   config.Tools
	threads string
}

// NewTools returns a Tools that passes threads to every multithreaded
// tool.
func NewTools(paths config.Tools, threads int) Tools {
	return Tools{paths: paths, threads: strconv.Itoa(threads)}
}

// Velveth hashes the reads for velvet.
func (t Tools) Velveth(dir string, kmer int, reads []string) Command {
	args := append([]string{dir, strconv.Itoa(kmer), "-fastq", "-short"}, reads...)
	return Command{Tool: "velveth", Path: t.paths.Velveth, Args: args}
}

// Velvetg assembles contigs.fa in dir.
func (t Tools) Velvetg(dir string) Command {
	return Command{Tool: "velvetg", Path: t.paths.Velvetg, Args: []string{dir, "-exp_cov", "auto", "-cov_cutoff", "auto"}}
}

// Minia assembles prefix.contigs.fa from the reads listed in readList.
func (t Tools) Minia(readList string, kmer int, prefix string) Command {
	return Command{Tool: "minia", Path: t.paths.Minia, Args: []string{
		"-in", readList, "-kmer-size", strconv.Itoa(kmer), "-abundance-min", "2",
		"-nb-cores", t.threads, "-out", prefix,
	}}
}

// Bowtie2Build indexes a FASTA file.
func (t Tools) Bowtie2Build(fasta, index string) Command {
	return Command{Tool: "bowtie2-build", Path: t.paths.Bowtie2Build, Args: []string{"--threads", t.threads, fasta, index}}
}

// Bowtie2 aligns reads locally, allowing one mismatch in the seed.
func (t Tools) Bowtie2(index string, reads []string, samOut string) Command {
	return Command{Tool: "bowtie2", Path: t.paths.Bowtie2, Args: []string{
		"-p", t.threads, "-N", "1", "--local", "-x", index, "-U", strings.Join(reads, ","), "-S", samOut,
	}}
}

// Bowtie2Fasta aligns FASTA sequences end-to-end.
func (t Tools) Bowtie2Fasta(index, fasta, samOut string) Command {
	return Command{Tool: "bowtie2", Path: t.paths.Bowtie2, Args: []string{
		"-p", t.threads, "-f", "-x", index, "-U", fasta, "-S", samOut,
	}}
}

// SamtoolsSort sorts a SAM file into a BAM file.
func (t Tools) SamtoolsSort(in, out string) Command {
	return Command{Tool: "samtools", Path: t.paths.Samtools, Args: []string{"sort", "-@", t.threads, "-o", out, in}}
}

// SamtoolsMerge merges sorted BAM files.
func (t Tools) SamtoolsMerge(out string, in []string) Command {
	return Command{Tool: "samtools", Path: t.paths.Samtools, Args: append([]string{"merge", "-f", "-@", t.threads, out}, in...)}
}

// SamtoolsIndex indexes a BAM file.
func (t Tools) SamtoolsIndex(bam string) Command {
	return Command{Tool: "samtools", Path: t.paths.Samtools, Args: []string{"index", bam}}
}

// SamtoolsFaidx indexes a FASTA file.
func (t Tools) SamtoolsFaidx(fasta string) Command {
	return Command{Tool: "samtools", Path: t.paths.Samtools, Args: []string{"faidx", fasta}}
}

// Mpileup piles up a BAM file against its reference.
func (t Tools) Mpileup(reference, bam, out string) Command {
	return Command{Tool: "samtools", Path: t.paths.Samtools, Args: []string{"mpileup", "-f", reference, "-o", out, bam}}
}

// Mafft aligns the sequences of a locus.
func (t Tools) Mafft(in, out string) Command {
	return Command{Tool: "mafft", Path: t.paths.Mafft, Args: []string{"--auto", "--quiet", "--thread", t.threads, in}, Stdout: out}
}

// AlignUnique returns the tasks that align reads to an index and keep
// the uniquely mapped reads in a sorted BAM file. The intermediate SAM
// files are removed.
func (t Tools) AlignUnique(index string, reads []string, samOut, bam string, logger *zap.Logger) []Task {
	unique := bam + ".unique.sam"
	return []Task{
		t.Bowtie2(index, reads, samOut),
		Func{Name: "filter uniquely mapped reads " + samOut, F: func(context.Context) error {
			stats, err := sam.FilterFile(samOut, unique, sam.UniquelyMapped...)
			if err != nil {
				return err
			}
			logger.Debug("Filtered alignments", zap.String("file", samOut), zap.Int("kept", stats.Kept), zap.Int("removed", stats.Removed))
			return internal.RemoveIfExists(samOut)
		}},
		t.SamtoolsSort(unique, bam),
		Func{Name: "remove " + unique, F: func(context.Context) error {
			return internal.RemoveIfExists(unique)
		}},
	}
}
