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

// Package logging sets up the run log of a sisrs invocation.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
)

// Options control where the run log goes.
type Options struct {
	// Path is the directory below which logs/sisrs is created. Defaults
	// to $HOME.
	Path string
	// RedirectStderr routes file descriptor 2 into the log file, so the
	// output of anything writing to stderr directly is kept. Log entries
	// are still echoed on the original stderr.
	RedirectStderr bool
	// Debug lowers the console level to debug.
	Debug bool
}

// Log is an open run log.
type Log struct {
	*zap.Logger
	RunID    uuid.UUID
	Filename string
	// Console is the original stderr, also when it is redirected.
	Console io.Writer

	file      *os.File
	orgStderr *os.File
}

func createLogFilename(runID uuid.UUID) string {
	t := time.Now()
	return fmt.Sprintf("logs/sisrs/sisrs-%d-%02d-%02d-%02d-%02d-%02d-%v.log", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), runID)
}

// New creates a fresh log file for a run with a new run ID.
func New(opts Options) (*Log, error) {
	runID := uuid.New()
	base := opts.Path
	if base == "" {
		base = os.Getenv("HOME")
	}
	fullPath := filepath.Join(base, createLogFilename(runID))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0700); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	f, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	l := &Log{RunID: runID, Filename: fullPath, file: f}

	var console io.Writer = os.Stderr
	if opts.RedirectStderr {
		orgStderr, err := unix.Dup(2)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("logging: %w", err)
		}
		if err := unix.Dup2(int(f.Fd()), 2); err != nil {
			_ = unix.Close(orgStderr)
			_ = f.Close()
			return nil, fmt.Errorf("logging: %w", err)
		}
		l.orgStderr = os.NewFile(uintptr(orgStderr), "/dev/stderr")
		console = l.orgStderr
	}

	consoleLevel := zapcore.InfoLevel
	if opts.Debug {
		consoleLevel = zapcore.DebugLevel
	}
	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(f), zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(zapcore.AddSync(console)), consoleLevel),
	)
	l.Console = console
	l.Logger = zap.New(core).With(zap.String("run", runID.String()))
	l.Info("Created log file", zap.String("path", fullPath), zap.Strings("command-line", os.Args))
	return l, nil
}

// Close flushes the log, restores stderr if it was redirected, and
// closes the log file.
func (l *Log) Close() error {
	_ = l.Sync()
	var err error
	if l.orgStderr != nil {
		err = unix.Dup2(int(l.orgStderr.Fd()), 2)
		if nerr := l.orgStderr.Close(); err == nil {
			err = nerr
		}
		l.orgStderr = nil
	}
	if nerr := l.file.Close(); err == nil {
		err = nerr
	}
	return err
}

// Timed runs f, logging msg and the elapsed time when timed is set.
func Timed(logger *zap.Logger, timed bool, msg string, f func() error) error {
	if !timed {
		return f()
	}
	logger.Info(msg)
	start := time.Now()
	err := f()
	logger.Info("Elapsed time", zap.String("phase", msg), zap.Duration("elapsed", time.Since(start)))
	return err
}
