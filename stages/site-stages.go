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

package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/gateway"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/pileup"
	"github.com/exascience/sisrs/sam"
	"github.com/exascience/sisrs/sites"
	"github.com/exascience/sisrs/taxa"
	"go.uber.org/zap"
)

// Stage names.
const (
	Subsample            = "subsample"
	BuildCompositeGenome = "build-composite-genome"
	AlignToComposite     = "align-to-composite"
	MapToReference       = "map-to-reference"
	IdentifyFixedSites   = "identify-fixed-sites"
	OutputAlignment      = "output-alignment"
	FilterMissing        = "filter-missing"
)

// coverage is the total depth that subsampling aims for over all taxa.
const coverage = 10

// All is the site stage pipeline.
var All = Pipeline{
	{Name: Subsample, Run: subsample, Outputs: subsampleOutputs},
	{Name: BuildCompositeGenome, Run: buildCompositeGenome, Outputs: compositeOutputs},
	{Name: AlignToComposite, Run: alignToComposite, Outputs: alignToCompositeOutputs},
	{Name: MapToReference, Run: mapToReference, Outputs: mapToReferenceOutputs},
	{Name: IdentifyFixedSites, Run: identifyFixedSites, Outputs: fixedSitesOutputs},
	{Name: OutputAlignment, Run: outputAlignment, Outputs: alignmentOutputs},
	{Name: FilterMissing, Run: filterMissing, Outputs: filteredOutputs},
}

// withReads returns the taxa with read files, warning about the others.
func withReads(env *Env) []*taxa.Taxon {
	var result []*taxa.Taxon
	for _, taxon := range env.Taxa.All() {
		if taxon.HasReads() {
			result = append(result, taxon)
		}
	}
	return result
}

func warnWithoutReads(env *Env, stage string) {
	if ids := env.Taxa.WithoutReads(); len(ids) > 0 {
		env.Logger.Warn("Taxa without read files contribute no coverage", zap.String("stage", stage), zap.Strings("taxa", ids))
	}
}

func subsampleFiles(env *Env) (files []string) {
	for _, taxon := range withReads(env) {
		for i := range taxon.Reads {
			files = append(files, env.Layout.Subsample(taxon.ID, i))
		}
	}
	return files
}

func subsampleOutputs(env *Env) []string {
	if env.Config.Assembler == config.Premade {
		return nil
	}
	return subsampleFiles(env)
}

// subsample copies the first reads of every read file so that the
// composite genome is assembled from about 10x coverage in total,
// shared evenly by the taxa.
func subsample(ctx context.Context, env *Env) error {
	if env.Config.Assembler == config.Premade {
		env.Logger.Info("Premade composite genome, skipping subsampling")
		return nil
	}
	warnWithoutReads(env, Subsample)
	sampled := withReads(env)
	if len(sampled) == 0 {
		return nil
	}
	perTaxon := env.Config.GenomeSize * coverage / int64(len(sampled))
	var jobs []gateway.Job
	for _, taxon := range sampled {
		taxon := taxon
		perFile := perTaxon / int64(len(taxon.Reads))
		var outputs []string
		for i := range taxon.Reads {
			outputs = append(outputs, env.Layout.Subsample(taxon.ID, i))
		}
		jobs = append(jobs, gateway.Job{
			Name: taxon.ID,
			Tasks: []gateway.Task{gateway.Func{Name: "subsample " + taxon.ID, F: func(context.Context) error {
				for i, reads := range taxon.Reads {
					bases, err := fasta.CopyReads(reads, outputs[i], perFile)
					if err != nil {
						return err
					}
					if bases < perFile {
						env.Logger.Warn("Read file has fewer bases than the subsampling budget",
							zap.String("file", reads), zap.Int64("bases", bases), zap.Int64("budget", perFile))
					}
				}
				return nil
			}}},
			Outputs: outputs,
		})
	}
	return env.Gateway.RunBatch(ctx, Subsample, jobs)
}

func compositeOutputs(env *Env) []string {
	l := env.Layout
	return []string{l.CompositeContigs(), l.CompositeFai(), l.CompositeIndex() + ".1.bt2"}
}

func rename(from, to string) gateway.Func {
	return gateway.Func{Name: "rename " + from, F: func(context.Context) error {
		return os.Rename(from, to)
	}}
}

// buildCompositeGenome assembles the subsampled reads of all taxa, or
// copies a premade genome, and indexes the result.
func buildCompositeGenome(ctx context.Context, env *Env) error {
	l, t, cfg := env.Layout, env.Tools, env.Config
	if err := os.MkdirAll(l.Composite(), 0700); err != nil {
		return err
	}
	var tasks []gateway.Task
	switch cfg.Assembler {
	case config.Velvet:
		tasks = append(tasks, t.Velveth(l.Composite(), cfg.Kmer, subsampleFiles(env)), t.Velvetg(l.Composite()))
	case config.Minia:
		readList := filepath.Join(l.Composite(), "reads.txt")
		if err := os.WriteFile(readList, []byte(strings.Join(subsampleFiles(env), "\n")+"\n"), 0644); err != nil {
			return err
		}
		prefix := filepath.Join(l.Composite(), "minia")
		tasks = append(tasks, t.Minia(readList, cfg.Kmer, prefix), rename(prefix+".contigs.fa", l.CompositeContigs()))
	case config.Premade:
		premade := cfg.Premade
		tasks = append(tasks, gateway.Func{Name: "copy " + premade, F: func(context.Context) error {
			return internal.CopyFile(premade, l.CompositeContigs())
		}})
	}
	tasks = append(tasks, t.SamtoolsFaidx(l.CompositeContigs()), t.Bowtie2Build(l.CompositeContigs(), l.CompositeIndex()))
	return env.Gateway.RunBatch(ctx, BuildCompositeGenome, []gateway.Job{
		{Name: "composite", Tasks: tasks, Outputs: compositeOutputs(env)},
	})
}

func alignToCompositeOutputs(env *Env) (outputs []string) {
	for _, taxon := range withReads(env) {
		outputs = append(outputs, env.Layout.TaxonBam(taxon.ID))
	}
	return outputs
}

// alignToComposite keeps the uniquely mapped reads of every taxon on
// the composite genome.
func alignToComposite(ctx context.Context, env *Env) error {
	warnWithoutReads(env, AlignToComposite)
	l, t := env.Layout, env.Tools
	var jobs []gateway.Job
	for _, taxon := range withReads(env) {
		bam := l.TaxonBam(taxon.ID)
		tasks := t.AlignUnique(l.CompositeIndex(), taxon.Reads, l.TaxonSam(taxon.ID), bam, env.Logger)
		jobs = append(jobs, gateway.Job{
			Name:    taxon.ID,
			Tasks:   append(tasks, t.SamtoolsIndex(bam)),
			Outputs: []string{bam},
		})
	}
	return env.Gateway.RunBatch(ctx, AlignToComposite, jobs)
}

func mapToReferenceOutputs(env *Env) []string {
	if env.Config.Reference == "" {
		return nil
	}
	return []string{env.Layout.ContigPositions()}
}

// mapToReference translates contig coordinates to a reference genome.
func mapToReference(ctx context.Context, env *Env) error {
	if env.Config.Reference == "" {
		env.Logger.Info("No reference genome, skipping mapping to reference")
		return nil
	}
	l, t := env.Layout, env.Tools
	samFile := l.ContigsOnReference()
	return env.Gateway.RunBatch(ctx, MapToReference, []gateway.Job{{
		Name: "reference",
		Tasks: []gateway.Task{
			t.Bowtie2Build(env.Config.Reference, l.ReferenceIndex()),
			t.Bowtie2Fasta(l.ReferenceIndex(), l.CompositeContigs(), samFile),
			gateway.Func{Name: "contig positions", F: func(context.Context) error {
				mapped, err := sam.WriteContigPositions(samFile, l.ContigPositions())
				if err != nil {
					return err
				}
				env.Logger.Info("Mapped contigs to reference", zap.Int("contigs", mapped))
				return nil
			}},
		},
		Outputs: []string{l.ContigPositions()},
	}})
}

func fixedSitesOutputs(env *Env) (outputs []string) {
	for _, taxon := range withReads(env) {
		outputs = append(outputs, env.Layout.FixedSites(taxon.ID))
	}
	return outputs
}

// identifyFixedSites realigns every taxon to its own pruned contigs and
// calls the sites without variation within the taxon.
func identifyFixedSites(ctx context.Context, env *Env) error {
	l, t, cfg := env.Layout, env.Tools, env.Config
	composite, err := fasta.ReadFile(l.CompositeContigs())
	if err != nil {
		return err
	}
	var jobs []gateway.Job
	for _, taxon := range withReads(env) {
		id := taxon.ID
		var uncovered bool
		realign := t.AlignUnique(l.TaxonIndex(id), taxon.Reads, l.TaxonSam(id), l.PrunedBam(id), env.Logger)
		realign = append([]gateway.Task{t.Bowtie2Build(l.TaxonContigs(id), l.TaxonIndex(id))}, realign...)
		realign = append(realign,
			t.SamtoolsIndex(l.PrunedBam(id)),
			t.Mpileup(l.TaxonContigs(id), l.PrunedBam(id), l.TaxonPileups(id)),
			gateway.Func{Name: "call fixed sites " + id, F: func(context.Context) error {
				called, unresolved, err := pileup.WriteFixedSites(l.TaxonPileups(id), l.FixedSites(id), cfg.MinReads, cfg.Threshold)
				if err != nil {
					return err
				}
				env.Logger.Info("Called fixed sites", zap.String("taxon", id), zap.Int("called", called), zap.Int("unresolved", unresolved))
				return nil
			}},
		)
		tasks := []gateway.Task{
			t.Mpileup(l.CompositeContigs(), l.TaxonBam(id), l.CompositePileups(id)),
			gateway.Func{Name: "prune contigs " + id, F: func(context.Context) error {
				pruned, err := pileup.PrunedContigs(composite, l.CompositePileups(id))
				if err != nil {
					return err
				}
				if len(pruned) == 0 {
					uncovered = true
					env.Logger.Warn("No composite contig is covered by the reads of taxon, it contributes no sites", zap.String("taxon", id))
					if err := os.MkdirAll(filepath.Dir(l.FixedSites(id)), 0700); err != nil {
						return err
					}
					return os.WriteFile(l.FixedSites(id), nil, 0644)
				}
				return fasta.WriteFile(l.TaxonContigs(id), pruned)
			}},
			gateway.Optional{Name: "realign and call " + id, Skip: func() bool { return uncovered }, Tasks: realign},
		}
		jobs = append(jobs, gateway.Job{Name: id, Tasks: tasks, Outputs: []string{l.FixedSites(id)}})
	}
	return env.Gateway.RunBatch(ctx, IdentifyFixedSites, jobs)
}

func alignmentOutputs(env *Env) []string {
	return []string{env.Layout.Alignment(), env.Layout.AlignmentLocs()}
}

// outputAlignment merges the fixed sites of all taxa and keeps the sites
// that at most Missing taxa lack.
func outputAlignment(_ context.Context, env *Env) error {
	l := env.Layout
	ids := env.Taxa.IDs()
	files := make([]string, len(ids))
	for i, taxon := range env.Taxa.All() {
		if taxon.HasReads() {
			files[i] = l.FixedSites(taxon.ID)
		}
	}
	merged, err := sites.Merge(ids, files)
	if err != nil {
		return err
	}
	m := env.Missing()
	alignment := merged.FilterMissing(m)
	env.Logger.Info("Merged fixed sites", zap.Int("sites", merged.Len()), zap.Int("kept", alignment.Len()), zap.Int("missing", m))
	return alignment.WriteNexus(l.Alignment(), l.AlignmentLocs())
}

func filteredOutputs(env *Env) (outputs []string) {
	l, m := env.Layout, env.Missing()
	for _, v := range sites.Variants {
		outputs = append(outputs, l.Filtered(m, v.Suffix()), l.FilteredLocs(m, v.Suffix()), l.FilteredPhylip(m, v.Suffix()))
	}
	return outputs
}

// filterMissing writes the variable sites of the alignment in three
// variants.
func filterMissing(_ context.Context, env *Env) error {
	l, m := env.Layout, env.Missing()
	alignment, err := sites.ReadNexus(l.Alignment(), l.AlignmentLocs())
	if err != nil {
		return err
	}
	for _, v := range sites.Variants {
		filtered := alignment.Filter(m, v)
		if filtered.Len() == 0 {
			env.Logger.Warn("No sites left after filtering", zap.Stringer("variant", v), zap.Int("missing", m))
		}
		if err := filtered.WriteNexus(l.Filtered(m, v.Suffix()), l.FilteredLocs(m, v.Suffix())); err != nil {
			return err
		}
		if err := filtered.WritePhylip(l.FilteredPhylip(m, v.Suffix())); err != nil {
			return err
		}
		env.Logger.Info("Filtered sites alignment", zap.Stringer("variant", v), zap.Int("sites", filtered.Len()), zap.Int("missing", m))
	}
	return nil
}
