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

package cmd

import (
	"fmt"
	"io"

	"github.com/exascience/sisrs/stages"
	"github.com/exascience/sisrs/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runStages(cmd *cobra.Command, o *options, start string, mode stages.Mode) (err error) {
	env, closeLog, err := o.openRun(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := closeLog(); err == nil {
			err = nerr
		}
	}()
	if err = stages.All.Run(cmd.Context(), env, start, mode); err != nil {
		env.Logger.Error("Site stages failed", zap.Error(err))
	}
	return err
}

func newSitesCommand(o *options) *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Run all site stages",
		Long: `Run all site stages, from subsampling the reads to filtering the
sites alignment for missing data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStages(cmd, o, "", modeOf(single))
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "run only the first stage")
	return cmd
}

func modeOf(single bool) stages.Mode {
	if single {
		return stages.Single
	}
	return stages.Continuous
}

func newStageCommand(o *options, stage string) *cobra.Command {
	var single bool
	cmd := &cobra.Command{
		Use:   stage,
		Short: fmt.Sprintf("Run the site stages starting at %v", stage),
		Long: fmt.Sprintf(`Run the site stages starting at %v, up to the last stage.
The outputs of all earlier stages must exist.`, stage),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStages(cmd, o, stage, modeOf(single))
		},
	}
	cmd.Flags().BoolVar(&single, "single", false, "run only this stage")
	return cmd
}

func newLociCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "loci",
		Short: "Build, select and concatenate orthologous loci",
		Long: `Build orthologous loci and write one concatenated alignment per
selection policy. The workflow starts from the most advanced artifacts
that exist, and runs the site stages first when nothing usable exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			env, closeLog, err := o.openRun(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if nerr := closeLog(); err == nil {
					err = nerr
				}
			}()
			summary, err := workflow.Run(cmd.Context(), env)
			if err != nil {
				env.Logger.Error("Loci workflow failed", zap.Error(err))
				return err
			}
			for _, plan := range summary.Plans {
				fmt.Fprintf(cmd.OutOrStdout(), "%v: %v loci, %v sites -> %v\n",
					plan.Policy, len(plan.Loci), plan.Total, env.Layout.Selection(plan.Policy.String()))
			}
			return nil
		},
	}
}

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which site stages are complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := o.env(cmd, zap.NewNop())
			if err != nil {
				return err
			}
			status, err := stages.All.Status(env)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printStatus(w io.Writer, status []stages.Status) {
	for _, s := range status {
		switch {
		case s.Complete && s.Marker != nil:
			fmt.Fprintf(w, "%-24v complete  %v\n", s.Stage, s.Marker.Completed.Format("2006-01-02 15:04:05"))
		case s.Complete:
			fmt.Fprintf(w, "%-24v complete\n", s.Stage)
		case s.Missing != "":
			fmt.Fprintf(w, "%-24v pending   missing %v\n", s.Stage, s.Missing)
		default:
			fmt.Fprintf(w, "%-24v pending\n", s.Stage)
		}
	}
}
