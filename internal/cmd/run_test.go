// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/sofix/internal/cmd"
)

func writePatchelfStub(tb testing.TB) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "patchelf")
	err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755)
	require.NoError(tb, err)

	return path
}

func TestRun(t *testing.T) {
	t.Setenv("SOFIX_ARGS", "")
	t.Setenv("SOFIX_PATCHELF", "")

	t.Run("version", func(t *testing.T) {
		var stderr strings.Builder

		cfg := cmd.IO{Stdout: &strings.Builder{}, Stderr: &stderr}

		exitCode := cmd.Run(t.Context(), []string{"sofix", "-version"}, cfg)

		assert.Equal(t, 0, exitCode)
		assert.Contains(t, stderr.String(), "sofix:")
	})

	t.Run("usage error", func(t *testing.T) {
		var stderr strings.Builder

		cfg := cmd.IO{Stdout: &strings.Builder{}, Stderr: &stderr}

		exitCode := cmd.Run(t.Context(), []string{"sofix"}, cfg)

		assert.Equal(t, 2, exitCode)
		assert.Contains(t, stderr.String(), "no target paths given")
	})

	t.Run("missing patchelf binary", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "app")
		require.NoError(t, os.WriteFile(target, []byte("not elf"), 0o644))

		cfg := cmd.IO{Stdout: &strings.Builder{}, Stderr: &strings.Builder{}}

		args := []string{
			"sofix",
			"-lib", t.TempDir(),
			"-patchelf", filepath.Join(t.TempDir(), "nonexistent"),
			target,
		}

		exitCode := cmd.Run(t.Context(), args, cfg)

		assert.Equal(t, 2, exitCode)
	})

	t.Run("missing target is fatal", func(t *testing.T) {
		cfg := cmd.IO{Stdout: &strings.Builder{}, Stderr: &strings.Builder{}}

		args := []string{
			"sofix",
			"-lib", t.TempDir(),
			"-patchelf", writePatchelfStub(t),
			filepath.Join(t.TempDir(), "nonexistent"),
		}

		exitCode := cmd.Run(t.Context(), args, cfg)

		assert.Equal(t, 2, exitCode)
	})

	t.Run("non ELF targets succeed", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "README")
		require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

		var stdout strings.Builder

		cfg := cmd.IO{Stdout: &stdout, Stderr: &strings.Builder{}}

		args := []string{
			"sofix",
			"-lib", t.TempDir(),
			"-patchelf", writePatchelfStub(t),
			target,
		}

		exitCode := cmd.Run(t.Context(), args, cfg)

		assert.Equal(t, 0, exitCode)
		assert.Contains(t, stdout.String(), "processed 0 files")
	})
}
