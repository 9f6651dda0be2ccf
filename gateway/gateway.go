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

// Package gateway runs the external tools of a sisrs run as batches of
// jobs with bounded parallelism.
//
// A batch is a barrier: RunBatch returns only after every job it
// started has ended. Once a job fails, no further job of the batch is
// started, but jobs that are already running are allowed to finish,
// since external tools are never interrupted.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/exascience/sisrs/internal"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// A Task is one step of a job.
type Task interface {
	Run(ctx context.Context, log io.Writer) error
	String() string
}

// Command is an external tool invocation. Its standard error goes to
// the job log; its standard output goes to Stdout if set, and to the
// job log otherwise.
type Command struct {
	Tool   string
	Path   string
	Args   []string
	Stdout string
	Dir    string
}

func (c Command) String() string {
	s := c.Path + " " + strings.Join(c.Args, " ")
	if c.Stdout != "" {
		s += " > " + c.Stdout
	}
	return s
}

// Run implements Task. The process is started with exec.Command rather
// than exec.CommandContext, so it is never killed once started.
func (c Command) Run(_ context.Context, log io.Writer) (err error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stderr = log
	cmd.Stdout = log
	if c.Stdout != "" {
		if err = os.MkdirAll(filepath.Dir(c.Stdout), 0700); err != nil {
			return err
		}
		var out *os.File
		if out, err = os.Create(c.Stdout); err != nil {
			return err
		}
		defer func() {
			if nerr := out.Close(); err == nil {
				err = nerr
			}
		}()
		cmd.Stdout = out
	}
	if err = cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExitError{Tool: c.Tool, ExitCode: code, Err: err}
	}
	return nil
}

// Func is an in-process task.
type Func struct {
	Name string
	F    func(ctx context.Context) error
}

func (f Func) String() string { return f.Name }

// Run implements Task.
func (f Func) Run(ctx context.Context, _ io.Writer) error {
	return f.F(ctx)
}

// Optional runs its tasks in order, unless Skip reports true when it
// is reached. Skip is evaluated only after the earlier tasks of the job
// ran.
type Optional struct {
	Name  string
	Skip  func() bool
	Tasks []Task
}

func (o Optional) String() string { return o.Name }

// Run implements Task.
func (o Optional) Run(ctx context.Context, log io.Writer) error {
	if o.Skip != nil && o.Skip() {
		fmt.Fprintln(log, "# skipped", o.Name)
		return nil
	}
	for _, task := range o.Tasks {
		fmt.Fprintln(log, "#", task)
		if err := task.Run(ctx, log); err != nil {
			return fmt.Errorf("%v: %w", task, err)
		}
	}
	return nil
}

// A Job is a sequence of tasks over one taxon or locus, and the files
// that must exist once it succeeded.
type Job struct {
	Name    string
	Tasks   []Task
	Outputs []string
}

// ExitError reports an external tool that did not exit with status 0.
type ExitError struct {
	Tool     string
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v exited with status %v: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// MissingOutputError reports a job that succeeded without producing
// one of its outputs.
type MissingOutputError struct {
	Path string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("expected output %v is missing", e.Path)
}

// JobError reports the failure of a job in a batch.
type JobError struct {
	Stage string
	Job   string
	Task  string
	Log   string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("stage %v, job %v: %v (command: %v; see %v)", e.Stage, e.Job, e.Err, e.Task, e.Log)
}

func (e *JobError) Unwrap() error { return e.Err }

// Gateway runs batches of jobs.
type Gateway struct {
	// Parallelism bounds the number of jobs running at the same time.
	Parallelism int
	// LogFile names the log of a job.
	LogFile func(stage, job string) string
	// Progress receives progress bars if not nil.
	Progress io.Writer
	Logger   *zap.Logger
}

// New returns a Gateway that runs at most parallelism jobs at a time.
func New(parallelism int, logFile func(stage, job string) string, logger *zap.Logger) *Gateway {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Gateway{Parallelism: parallelism, LogFile: logFile, Logger: logger}
}

// RunBatch runs all jobs and waits for them. It returns the first job
// failure, if any.
func (g *Gateway) RunBatch(ctx context.Context, stage string, jobs []Job) error {
	if len(jobs) == 0 {
		return nil
	}
	var progress *mpb.Progress
	var bar *mpb.Bar
	if g.Progress != nil {
		progress = mpb.New(mpb.WithWidth(40), mpb.WithOutput(g.Progress), mpb.WithAutoRefresh())
		bar = progress.AddBar(int64(len(jobs)),
			mpb.PrependDecorators(
				decor.Name(stage+": ", decor.WC{W: len(stage) + 2, C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Elapsed(decor.ET_STYLE_GO),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	start := time.Now()
	g.Logger.Info("Starting batch", zap.String("stage", stage), zap.Int("jobs", len(jobs)), zap.Int("parallelism", g.Parallelism))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.Parallelism)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		job := job
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := g.runJob(gctx, stage, job)
			if bar != nil {
				bar.Increment()
			}
			return err
		})
	}
	err := group.Wait()
	if progress != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		g.Logger.Error("Batch failed", zap.String("stage", stage), zap.Error(err))
		return err
	}
	g.Logger.Info("Finished batch", zap.String("stage", stage), zap.Int("jobs", len(jobs)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (g *Gateway) runJob(ctx context.Context, stage string, job Job) (err error) {
	logName := g.LogFile(stage, job.Name)
	if err = os.MkdirAll(filepath.Dir(logName), 0700); err != nil {
		return &JobError{Stage: stage, Job: job.Name, Log: logName, Err: err}
	}
	log, err := os.Create(logName)
	if err != nil {
		return &JobError{Stage: stage, Job: job.Name, Log: logName, Err: err}
	}
	defer func() {
		if nerr := log.Close(); err == nil && nerr != nil {
			err = &JobError{Stage: stage, Job: job.Name, Log: logName, Err: nerr}
		}
	}()
	for _, task := range job.Tasks {
		g.Logger.Debug("Running task", zap.String("stage", stage), zap.String("job", job.Name), zap.Stringer("task", task))
		fmt.Fprintln(log, "#", task)
		if err := task.Run(ctx, log); err != nil {
			g.Logger.Error("Job failed", zap.String("stage", stage), zap.String("job", job.Name), zap.Stringer("task", task), zap.Error(err))
			return &JobError{Stage: stage, Job: job.Name, Task: task.String(), Log: logName, Err: err}
		}
	}
	if missing := internal.FirstMissing(job.Outputs...); missing != "" {
		return &JobError{Stage: stage, Job: job.Name, Task: "output check", Log: logName, Err: &MissingOutputError{Path: missing}}
	}
	return nil
}
