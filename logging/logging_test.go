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

package logging

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Path: dir})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(l.Filename, dir))
	assert.Contains(t, l.Filename, l.RunID.String())

	l.Info("stage finished", zap.String("stage", "subsample"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage":"subsample"`)
	assert.Contains(t, string(data), l.RunID.String())
}

func TestTimed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	require.NoError(t, Timed(logger, false, "quiet", func() error { return nil }))
	assert.Equal(t, 0, logs.Len())

	failure := errors.New("boom")
	err := Timed(logger, true, "loud", func() error { return failure })
	assert.Equal(t, failure, err)
	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, "Elapsed time", logs.All()[1].Message)
}
