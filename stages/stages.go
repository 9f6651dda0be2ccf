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

// Package stages runs the site stages of sisrs: a fixed, ordered
// sequence of named stages that turns the reads of all taxa into a
// sites alignment.
//
// A stage is complete when all of its outputs exist. Before a stage
// runs, the outputs of all stages before it must exist; stages without
// outputs never block later ones.
package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/exascience/sisrs/config"
	"github.com/exascience/sisrs/gateway"
	"github.com/exascience/sisrs/internal"
	"github.com/exascience/sisrs/layout"
	"github.com/exascience/sisrs/logging"
	"github.com/exascience/sisrs/taxa"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Env is everything a stage needs. It is built once per run.
type Env struct {
	Config  config.RunConfig
	Taxa    *taxa.Set
	Layout  layout.Layout
	Gateway *gateway.Gateway
	Tools   gateway.Tools
	Logger  *zap.Logger
	RunID   uuid.UUID
}

// NewEnv wires the gateway and the tools of a run. Progress bars are
// off until Gateway.Progress is set.
func NewEnv(cfg config.RunConfig, set *taxa.Set, logger *zap.Logger, runID uuid.UUID) *Env {
	l := layout.New(cfg.OutDir)
	return &Env{
		Config:  cfg,
		Taxa:    set,
		Layout:  l,
		Gateway: gateway.New(cfg.Processors, l.JobLog, logger),
		Tools:   gateway.NewTools(cfg.Tools, cfg.Threads),
		Logger:  logger,
		RunID:   runID,
	}
}

// Missing returns the missing-data allowance for the taxa of the run.
func (env *Env) Missing() int {
	return env.Config.Missing(env.Taxa.Len())
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name    string
	Run     func(ctx context.Context, env *Env) error
	Outputs func(env *Env) []string
}

func (s *Stage) outputs(env *Env) []string {
	if s.Outputs == nil {
		return nil
	}
	return s.Outputs(env)
}

// Mode selects how many stages a run executes.
type Mode int

const (
	// Continuous runs from the start stage to the last stage.
	Continuous Mode = iota
	// Single runs only the start stage.
	Single
)

func (m Mode) String() string {
	if m == Single {
		return "single"
	}
	return "continuous"
}

// PreconditionError reports an artifact that a stage needs, but that
// an earlier stage did not produce.
type PreconditionError struct {
	Stage    string
	Artifact string
	Producer string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("stage %v requires %v, which is produced by stage %v; rerun starting from %v", e.Stage, e.Artifact, e.Producer, e.Producer)
}

// StageError reports a stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %v failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is a fixed order of stages.
type Pipeline []*Stage

// Names returns the stage names in order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

// Index returns the position of the named stage. The empty name is the
// first stage.
func (p Pipeline) Index(name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	for i, s := range p {
		if s.Name == name {
			return i, nil
		}
	}
	return -1, &config.Error{Option: "stage", Reason: fmt.Sprintf("unknown stage %q, must be one of %v", name, p.Names())}
}

func (p Pipeline) checkPreconditions(env *Env, i int) error {
	for _, producer := range p[:i] {
		if missing := internal.FirstMissing(producer.outputs(env)...); missing != "" {
			return &PreconditionError{Stage: p[i].Name, Artifact: missing, Producer: producer.Name}
		}
	}
	return nil
}

// Run executes the stages from start, either to the end or only start,
// and stops at the first failure.
func (p Pipeline) Run(ctx context.Context, env *Env, start string, mode Mode) error {
	first, err := p.Index(start)
	if err != nil {
		return err
	}
	last := len(p) - 1
	if mode == Single {
		last = first
	}
	env.Logger.Info("Running site stages", zap.String("from", p[first].Name), zap.String("to", p[last].Name), zap.Stringer("mode", mode))
	for i := first; i <= last; i++ {
		stage := p[i]
		if err := p.checkPreconditions(env, i); err != nil {
			return err
		}
		err := logging.Timed(env.Logger, env.Config.Timed, "stage "+stage.Name, func() error {
			return stage.Run(ctx, env)
		})
		if err != nil {
			return &StageError{Stage: stage.Name, Err: err}
		}
		if missing := internal.FirstMissing(stage.outputs(env)...); missing != "" {
			return &StageError{Stage: stage.Name, Err: &gateway.MissingOutputError{Path: missing}}
		}
		if err := writeMarker(env, stage); err != nil {
			return &StageError{Stage: stage.Name, Err: err}
		}
		env.Logger.Info("Completed stage", zap.String("stage", stage.Name))
	}
	return nil
}

// Marker records the completion of a stage.
type Marker struct {
	Stage     string    `yaml:"stage"`
	RunID     string    `yaml:"run_id"`
	Completed time.Time `yaml:"completed"`
	Outputs   []string  `yaml:"outputs,omitempty"`
}

func writeMarker(env *Env, stage *Stage) error {
	m := Marker{Stage: stage.Name, RunID: env.RunID.String(), Completed: time.Now().UTC(), Outputs: stage.outputs(env)}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	filename := env.Layout.Marker(stage.Name)
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// ReadMarker reads the completion marker of a stage, if any.
func ReadMarker(l layout.Layout, stage string) (*Marker, error) {
	data, err := os.ReadFile(l.Marker(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Marker
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%v: %w", l.Marker(stage), err)
	}
	return &m, nil
}

// Status is the completion state of a stage.
type Status struct {
	Stage    string
	Complete bool
	Missing  string
	Marker   *Marker
}

// Status reports for every stage whether it is complete: all its
// outputs exist, or, for stages without outputs, it left a marker.
func (p Pipeline) Status(env *Env) ([]Status, error) {
	result := make([]Status, len(p))
	for i, stage := range p {
		m, err := ReadMarker(env.Layout, stage.Name)
		if err != nil {
			return nil, err
		}
		s := Status{Stage: stage.Name, Marker: m}
		if outputs := stage.outputs(env); len(outputs) > 0 {
			s.Missing = internal.FirstMissing(outputs...)
			s.Complete = s.Missing == ""
		} else {
			s.Complete = m != nil
		}
		result[i] = s
	}
	return result, nil
}
