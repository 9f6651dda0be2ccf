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
	"fmt"
	"os"
	"strings"

	"github.com/exascience/sisrs/fasta"
	"github.com/exascience/sisrs/gateway"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/pileup"
	"github.com/exascience/sisrs/sites"
	"github.com/exascience/sisrs/stages"
	"go.uber.org/zap"
)

// WriteOrder stores the discovery order of the loci.
func WriteOrder(filename string, order []string) error {
	return sites.WriteLocs(filename, order)
}

// ReadOrder returns the stored discovery order of the loci, or, if none
// was stored, the order of first appearance in the loci references of
// the taxa.
func ReadOrder(env *stages.Env) ([]string, error) {
	if internal.Exists(env.Layout.LociOrder()) {
		return sites.ReadLocs(env.Layout.LociOrder())
	}
	var order []string
	seen := make(map[string]bool)
	for _, taxon := range env.Taxa.All() {
		ref := env.Layout.LociReference(taxon.ID)
		if !internal.Exists(ref) {
			continue
		}
		records, err := fasta.ReadFile(ref)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if !seen[r.ID] {
				seen[r.ID] = true
				order = append(order, r.ID)
			}
		}
	}
	return order, nil
}

func restrict(records []fasta.Record, order []string) []fasta.Record {
	index := fasta.Map(records)
	var result []fasta.Record
	for _, id := range order {
		if seq, ok := index[id]; ok {
			result = append(result, fasta.Record{ID: id, Seq: seq})
		}
	}
	return result
}

// ReferencesFromAlignment derives the loci reference of every taxon
// from the contigs of the sites in a sites alignment, in order of first
// appearance. A taxon gets its own pruned contigs when they exist, and
// the composite contigs otherwise. The composite contigs of the loci are
// also written as the shared reference.
func ReferencesFromAlignment(env *stages.Env, locsFile string) error {
	l := env.Layout
	keys, err := sites.ReadLocs(locsFile)
	if err != nil {
		return err
	}
	var order []string
	seen := make(map[string]bool)
	for _, key := range keys {
		contig, _, err := pileup.SplitKey(key)
		if err != nil {
			return fmt.Errorf("%v: %w", locsFile, err)
		}
		if !seen[contig] {
			seen[contig] = true
			order = append(order, contig)
		}
	}
	if len(order) == 0 {
		return fmt.Errorf("sites alignment %v has no sites to select loci from", locsFile)
	}
	composite, err := fasta.ReadFile(l.CompositeContigs())
	if err != nil {
		return err
	}
	shared := restrict(composite, order)
	if err := fasta.WriteFile(l.SharedReference(), shared); err != nil {
		return err
	}
	if err := WriteOrder(l.LociOrder(), order); err != nil {
		return err
	}
	for _, taxon := range env.Taxa.All() {
		if !taxon.HasReads() {
			continue
		}
		ref := shared
		if pruned := l.TaxonContigs(taxon.ID); internal.Exists(pruned) {
			records, err := fasta.ReadFile(pruned)
			if err != nil {
				return err
			}
			ref = restrict(records, order)
		}
		if len(ref) == 0 {
			env.Logger.Warn("No loci reference for taxon", zap.String("taxon", taxon.ID))
			continue
		}
		if err := fasta.WriteFile(l.LociReference(taxon.ID), ref); err != nil {
			return err
		}
	}
	env.Logger.Info("Derived loci references from sites alignment", zap.String("locs", locsFile), zap.Int("loci", len(order)))
	return nil
}

// ReferencesFromShared derives the loci reference of every taxon from
// its reads aligned to the shared reference: the covered contigs, with
// the majority base of the taxon.
func ReferencesFromShared(ctx context.Context, env *stages.Env) error {
	l, t := env.Layout, env.Tools
	shared, err := fasta.ReadFile(l.SharedReference())
	if err != nil {
		return err
	}
	order := make([]string, len(shared))
	for i, r := range shared {
		order[i] = r.ID
	}
	if err := WriteOrder(l.LociOrder(), order); err != nil {
		return err
	}
	const stage = "align-to-shared-reference"
	err = env.Gateway.RunBatch(ctx, stage, []gateway.Job{{
		Name:    "index",
		Tasks:   []gateway.Task{t.Bowtie2Build(l.SharedReference(), l.SharedReferenceIndex())},
		Outputs: []string{l.SharedReferenceIndex() + ".1.bt2"},
	}})
	if err != nil {
		return err
	}
	var jobs []gateway.Job
	for _, taxon := range env.Taxa.All() {
		if !taxon.HasReads() {
			continue
		}
		id := taxon.ID
		tasks := t.AlignUnique(l.SharedReferenceIndex(), taxon.Reads, l.TaxonSam(id), l.SharedBam(id), env.Logger)
		tasks = append(tasks,
			t.SamtoolsIndex(l.SharedBam(id)),
			t.Mpileup(l.SharedReference(), l.SharedBam(id), l.SharedPileups(id)),
			gateway.Func{Name: "loci reference " + id, F: func(context.Context) error {
				pruned, err := pileup.PrunedContigs(shared, l.SharedPileups(id))
				if err != nil {
					return err
				}
				if len(pruned) == 0 {
					env.Logger.Warn("No shared reference contig is covered", zap.String("taxon", id))
					return nil
				}
				return fasta.WriteFile(l.LociReference(id), pruned)
			}},
		)
		jobs = append(jobs, gateway.Job{Name: id, Tasks: tasks})
	}
	return env.Gateway.RunBatch(ctx, stage, jobs)
}

// writeLost lists the lost loci, one per line with their numbers of
// present and absent taxa.
func writeLost(filename string, lost []Lost) error {
	var sb strings.Builder
	for _, l := range lost {
		fmt.Fprintf(&sb, "%v\t%v\t%v\n", l.ID, l.Present, l.Absent)
	}
	return os.WriteFile(filename, []byte(sb.String()), 0644)
}
