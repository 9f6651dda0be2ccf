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

// Package layout names every file a sisrs run reads or writes below
// the output directory.
package layout

import (
	"fmt"
	"path/filepath"
)

const (
	compositeDir  = "composite"
	subsampleDir  = "subsamples"
	lociDir       = "loci"
	logDir        = "logs"
	markerDir     = ".sisrs"
	alignmentBase = "alignment"
)

// Layout is rooted at the output directory of a run.
type Layout struct {
	Out string
}

// New returns the layout for the given output directory.
func New(out string) Layout {
	return Layout{Out: out}
}

// Reserved lists the directories below Out that are not taxa.
func Reserved() []string {
	return []string{compositeDir, subsampleDir, lociDir, logDir, markerDir}
}

func (l Layout) join(elem ...string) string {
	return filepath.Join(append([]string{l.Out}, elem...)...)
}

// Subsamples is the directory for subsampled reads.
func (l Layout) Subsamples() string { return l.join(subsampleDir) }

// Subsample is the i-th subsampled read file of a taxon.
func (l Layout) Subsample(taxon string, i int) string {
	return l.join(subsampleDir, fmt.Sprintf("%v_%v.fastq", taxon, i+1))
}

// Composite is the working directory of the composite genome assembler.
func (l Layout) Composite() string { return l.join(compositeDir) }

// CompositeContigs is the composite genome.
func (l Layout) CompositeContigs() string { return l.join(compositeDir, "contigs.fa") }

// CompositeFai is the samtools index of the composite genome.
func (l Layout) CompositeFai() string { return l.CompositeContigs() + ".fai" }

// CompositeIndex is the bowtie2 index prefix of the composite genome.
func (l Layout) CompositeIndex() string { return l.join(compositeDir, "contigs") }

// ReferenceIndex is the bowtie2 index prefix of the external reference genome.
func (l Layout) ReferenceIndex() string { return l.join(compositeDir, "reference") }

// ContigsOnReference holds the alignment of the contigs to the reference.
func (l Layout) ContigsOnReference() string { return l.join(compositeDir, "contigs_reference.sam") }

// ContigPositions maps contigs to reference coordinates.
func (l Layout) ContigPositions() string { return l.join(compositeDir, "contigs_positions.txt") }

// Taxon is the working directory of a taxon.
func (l Layout) Taxon(taxon string) string { return l.join(taxon) }

func (l Layout) taxonFile(taxon, suffix string) string {
	return l.join(taxon, taxon+suffix)
}

// TaxonSam is the temporary aligner output of a taxon.
func (l Layout) TaxonSam(taxon string) string { return l.taxonFile(taxon, ".sam") }

// TaxonBam holds the uniquely mapped reads of a taxon on the composite genome.
func (l Layout) TaxonBam(taxon string) string { return l.taxonFile(taxon, ".bam") }

// CompositePileups is the pileup of a taxon on the composite genome.
func (l Layout) CompositePileups(taxon string) string {
	return l.taxonFile(taxon, "_composite.pileups")
}

// TaxonContigs is the taxon-pruned contig set.
func (l Layout) TaxonContigs(taxon string) string { return l.join(taxon, "contigs.fa") }

// TaxonIndex is the bowtie2 index prefix of the taxon-pruned contig set.
func (l Layout) TaxonIndex(taxon string) string { return l.join(taxon, "contigs") }

// PrunedBam holds the uniquely mapped reads of a taxon on its pruned contigs.
func (l Layout) PrunedBam(taxon string) string { return l.taxonFile(taxon, "_pruned.bam") }

// TaxonPileups is the pileup of a taxon on its pruned contigs.
func (l Layout) TaxonPileups(taxon string) string { return l.taxonFile(taxon, ".pileups") }

// FixedSites lists the fixed sites called for a taxon.
func (l Layout) FixedSites(taxon string) string { return l.taxonFile(taxon, "_fixed.tsv") }

// Alignment is the sites alignment written by output-alignment.
func (l Layout) Alignment() string { return l.join(alignmentBase + ".nex") }

// AlignmentLocs lists the contig/pos of every column of Alignment.
func (l Layout) AlignmentLocs() string { return l.join(alignmentBase + "_locs.txt") }

// Filtered is a missing-filtered sites alignment; suffix distinguishes
// the variants.
func (l Layout) Filtered(missing int, suffix string) string {
	return l.join(fmt.Sprintf("%v_m%v%v.nex", alignmentBase, missing, suffix))
}

// FilteredPhylip is the relaxed PHYLIP copy of a filtered alignment.
func (l Layout) FilteredPhylip(missing int, suffix string) string {
	return l.join(fmt.Sprintf("%v_m%v%v.phylip-relaxed", alignmentBase, missing, suffix))
}

// FilteredLocs lists the contig/pos of every column of a filtered alignment.
func (l Layout) FilteredLocs(missing int, suffix string) string {
	return l.join(fmt.Sprintf("%v_m%v%v_locs.txt", alignmentBase, missing, suffix))
}

// Marker is the completion marker of a stage.
func (l Layout) Marker(stage string) string { return l.join(markerDir, stage+".yaml") }

// JobLog receives the standard error of an external tool job.
func (l Layout) JobLog(stage, job string) string { return l.join(logDir, stage, job+".log") }

// Loci is the working directory of the loci workflow.
func (l Layout) Loci() string { return l.join(lociDir) }

// SharedReference is the reference contig set shared by all taxa.
func (l Layout) SharedReference() string { return l.join(lociDir, "reference_contigs.fa") }

// SharedReferenceIndex is the bowtie2 index prefix of SharedReference.
func (l Layout) SharedReferenceIndex() string { return l.join(lociDir, "reference_contigs") }

// SharedBam holds the reads of a taxon aligned to the shared reference.
func (l Layout) SharedBam(taxon string) string { return l.taxonFile(taxon, "_shared.bam") }

// SharedPileups is the pileup of a taxon on the shared reference.
func (l Layout) SharedPileups(taxon string) string { return l.taxonFile(taxon, "_shared.pileups") }

// LociReference is the per-taxon reference of the loci workflow.
func (l Layout) LociReference(taxon string) string { return l.join(taxon, "loci_ref.fa") }

// LociIndex is the bowtie2 index prefix of LociReference.
func (l Layout) LociIndex(taxon string) string { return l.join(taxon, "loci_ref") }

// LociSam is the aligner output for the i-th read file of a taxon.
func (l Layout) LociSam(taxon string, i int) string {
	return l.taxonFile(taxon, fmt.Sprintf("_loci_%v.sam", i+1))
}

// LociPartBam holds the sorted unique reads of the i-th read file of a taxon.
func (l Layout) LociPartBam(taxon string, i int) string {
	return l.taxonFile(taxon, fmt.Sprintf("_loci_%v.bam", i+1))
}

// LociBam holds all merged unique reads of a taxon on its loci reference.
func (l Layout) LociBam(taxon string) string { return l.taxonFile(taxon, "_loci.bam") }

// LociPileups is the pileup of a taxon on its loci reference.
func (l Layout) LociPileups(taxon string) string { return l.taxonFile(taxon, "_loci.pileups") }

// TaxonLoci holds the per-locus consensus sequences of a taxon.
func (l Layout) TaxonLoci(taxon string) string { return l.join(lociDir, "taxa", taxon+".fa") }

// Unaligned is the multi-taxon sequence set of a locus.
func (l Layout) Unaligned(locus string) string { return l.join(lociDir, "unaligned", locus+".fa") }

// Aligned is the multiple sequence alignment of a locus.
func (l Layout) Aligned(locus string) string { return l.join(lociDir, "aligned", locus+".fa") }

// LociOrder lists the reference contigs in discovery order.
func (l Layout) LociOrder() string { return l.join(lociDir, "order.txt") }

// Lost lists the loci discarded for missing data.
func (l Layout) Lost() string { return l.join(lociDir, "lost.txt") }

// Selection is the output directory of a locus selection policy.
func (l Layout) Selection(policy string) string { return l.join(lociDir, policy) }
