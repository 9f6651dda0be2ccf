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

package loci

import (
	"context"
	"os"
	"path/filepath"

	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/gateway"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/pileup"
	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/taxa"
	"go.uber.org/zap"
)

const (
	consensusStage = "locus-consensus"
	alignStage     = "align-loci"
)

func consensusJob(env *stages.Env, taxon *taxa.Taxon, minReads int) gateway.Job {
	l, t, ploidy := env.Layout, env.Tools, env.Config.Ploidy
	id := taxon.ID
	tasks := []gateway.Task{t.Bowtie2Build(l.LociReference(id), l.LociIndex(id))}
	var parts []string
	for i, reads := range taxon.Reads {
		part := l.LociPartBam(id, i)
		tasks = append(tasks, t.AlignUnique(l.LociIndex(id), []string{reads}, l.LociSam(id, i), part, env.Logger)...)
		parts = append(parts, part)
	}
	if len(parts) > 1 {
		tasks = append(tasks, t.SamtoolsMerge(l.LociBam(id), parts))
	} else {
		tasks = append(tasks, gateway.Func{Name: "rename " + parts[0], F: func(context.Context) error {
			return os.Rename(parts[0], l.LociBam(id))
		}})
	}
	tasks = append(tasks,
		t.SamtoolsIndex(l.LociBam(id)),
		t.Mpileup(l.LociReference(id), l.LociBam(id), l.LociPileups(id)),
		gateway.Func{Name: "consensus " + id, F: func(context.Context) error {
			reference, err := fasta.ReadFile(l.LociReference(id))
			if err != nil {
				return err
			}
			consensus, err := pileup.BuildConsensus(reference, l.LociPileups(id), minReads, ploidy)
			if err != nil {
				return err
			}
			var records []fasta.Record
			for _, c := range consensus {
				for i, allele := range c.Alleles {
					records = append(records, fasta.Record{ID: alleleID(c.Contig, i, ploidy), Seq: allele})
				}
			}
			env.Logger.Debug("Built consensus", zap.String("taxon", id), zap.Int("loci", len(consensus)))
			return fasta.WriteFile(l.TaxonLoci(id), records)
		}},
	)
	return gateway.Job{Name: id, Tasks: tasks, Outputs: []string{l.TaxonLoci(id)}}
}

// Build aligns the reads of every taxon to its loci reference, builds
// per-taxon consensus sequences from sites covered by at least minReads
// reads, and aligns every locus over all taxa. Loci that more than the
// missing-data allowance of taxa lack are returned as lost. The loci are
// returned in discovery order.
func Build(ctx context.Context, env *stages.Env, minReads int) (loci []*Locus, lost []Lost, err error) {
	l, set := env.Layout, env.Taxa
	order, err := ReadOrder(env)
	if err != nil {
		return nil, nil, err
	}

	var jobs []gateway.Job
	for _, taxon := range set.All() {
		switch {
		case !taxon.HasReads():
			env.Logger.Warn("Taxon without read files contributes no loci", zap.String("taxon", taxon.ID))
		case !internal.Exists(l.LociReference(taxon.ID)):
			env.Logger.Warn("Taxon without loci reference contributes no loci", zap.String("taxon", taxon.ID))
		default:
			jobs = append(jobs, consensusJob(env, taxon, minReads))
		}
	}
	if err = env.Gateway.RunBatch(ctx, consensusStage, jobs); err != nil {
		return nil, nil, err
	}

	perTaxon := make([][]fasta.Record, set.Len())
	for i, taxon := range set.All() {
		if filename := l.TaxonLoci(taxon.ID); internal.Exists(filename) {
			if perTaxon[i], err = fasta.ReadFile(filename); err != nil {
				return nil, nil, err
			}
		}
	}
	groups, err := Regroup(set, perTaxon, env.Config.Ploidy, order)
	if err != nil {
		return nil, nil, err
	}
	kept, lost := Trim(groups, set.Len(), env.Missing())
	if err = os.MkdirAll(l.Loci(), 0700); err != nil {
		return nil, nil, err
	}
	if err = writeLost(l.Lost(), lost); err != nil {
		return nil, nil, err
	}
	env.Logger.Info("Grouped loci", zap.Int("loci", len(groups)), zap.Int("kept", len(kept)), zap.Int("lost", len(lost)), zap.Int("missing", env.Missing()))

	jobs = jobs[:0]
	for _, g := range kept {
		if err = fasta.WriteFile(l.Unaligned(g.ID), g.Rows); err != nil {
			return nil, nil, err
		}
		aligned := l.Aligned(g.ID)
		if err = os.MkdirAll(filepath.Dir(aligned), 0700); err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, gateway.Job{
			Name:    g.ID,
			Tasks:   []gateway.Task{env.Tools.Mafft(l.Unaligned(g.ID), aligned)},
			Outputs: []string{aligned},
		})
	}
	if err = env.Gateway.RunBatch(ctx, alignStage, jobs); err != nil {
		return nil, nil, err
	}

	for _, g := range kept {
		aligned, err := fasta.ReadFile(l.Aligned(g.ID))
		if err != nil {
			return nil, nil, err
		}
		locus, err := FromAligned(g, aligned)
		if err != nil {
			return nil, nil, err
		}
		loci = append(loci, locus)
	}
	return loci, lost, nil
}
