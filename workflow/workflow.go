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

// Package workflow drives the loci workflow: it resolves where to
// enter, runs the steps from there, and writes one concatenated
// alignment per selection policy.
package workflow

import (
	"context"
	"fmt"

	"github.com/exascience/sisrs/loci"
	"github.com/exascience/sisrs/logging"
	"github.com/exascience/sisrs/resolver"
	"github.com/exascience/sisrs/selection"
	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/supermatrix"
	"go.uber.org/zap"
)

// Summary reports the outcome of a loci workflow run.
type Summary struct {
	Entry resolver.EntryPoint
	Loci  int
	Lost  int
	Plans []*selection.Plan
}

// Run executes the loci workflow.
func Run(ctx context.Context, env *stages.Env) (*Summary, error) {
	r := resolver.Resolve(env.Layout, env.Taxa, env.Config)
	plan := r.Plan()
	steps := make([]string, len(plan))
	for i, step := range plan {
		steps[i] = step.String()
	}
	env.Logger.Info("Resolved loci workflow entry", zap.Stringer("entry", r.Entry), zap.Strings("steps", steps))

	summary := &Summary{Entry: r.Entry}
	for _, step := range plan {
		err := logging.Timed(env.Logger, env.Config.Timed, step.String(), func() error {
			switch step {
			case resolver.RunSiteStages:
				return stages.All.Run(ctx, env, "", stages.Continuous)
			case resolver.DeriveFromAlignment:
				return loci.ReferencesFromAlignment(env, r.Locs)
			case resolver.AlignToSharedReference:
				return loci.ReferencesFromShared(ctx, env)
			default:
				built, lost, err := loci.Build(ctx, env, env.Config.MinReads)
				if err != nil {
					return err
				}
				summary.Loci, summary.Lost = len(built), len(lost)
				summary.Plans, err = SelectAndWrite(env, built)
				return err
			}
		})
		if err != nil {
			return summary, err
		}
	}
	summary.log(env.Logger)
	return summary, nil
}

// SelectAndWrite selects loci with every policy and writes the
// concatenated alignments.
func SelectAndWrite(env *stages.Env, built []*loci.Locus) ([]*selection.Plan, error) {
	if len(built) == 0 {
		return nil, fmt.Errorf("no locus has data for all but at most %v taxa", env.Missing())
	}
	rows := env.Taxa.RowNames(env.Config.Ploidy)
	var plans []*selection.Plan
	for _, policy := range selection.Policies {
		plan := selection.Select(built, env.Config.TargetLength, policy, env.Taxa.Len())
		m := supermatrix.Concatenate(plan, rows)
		if err := m.Write(env.Layout.Selection(policy.String())); err != nil {
			return nil, err
		}
		env.Logger.Info("Selected loci",
			zap.Stringer("policy", policy), zap.Int("loci", len(plan.Loci)),
			zap.Int("length", plan.Total), zap.Int("target", plan.Target))
		plans = append(plans, plan)
	}
	return plans, nil
}

func (s *Summary) log(logger *zap.Logger) {
	fields := []zap.Field{zap.Stringer("entry", s.Entry), zap.Int("loci", s.Loci), zap.Int("lost", s.Lost)}
	for _, p := range s.Plans {
		fields = append(fields, zap.Int(p.Policy.String()+"_length", p.Total), zap.Int(p.Policy.String()+"_loci", len(p.Loci)))
	}
	logger.Info("Loci workflow summary", fields...)
}
