// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package patchelf wraps the external "patchelf" utility that performs the
// actual rewriting of the dynamic section.
package patchelf

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const patchelfTimeout = 30 * time.Second

// Patch describes the metadata rewrite for a single file.
//
// An empty Interpreter leaves the interpreter untouched. SetRunPath must be
// set to rewrite the runtime search path, so an empty path can be written
// deliberately.
type Patch struct {
	Interpreter string
	SetRunPath  bool
	RunPath     []string
}

// IsZero reports whether the patch would not change anything.
func (p *Patch) IsZero() bool {
	return p.Interpreter == "" && !p.SetRunPath
}

// Tool invokes the patchelf binary.
type Tool struct {
	// Bin is the patchelf executable. It is resolved via the PATH
	// environment variable if it is not an absolute path.
	Bin string
}

// Apply rewrites the metadata of the file with the given path.
//
// It invokes the patchelf executable, which is expected to perform the
// rewrite idempotently and to validate that the file is a supported ELF
// object. It returns an [ExecError] in case patchelf is not available or
// returned with a non-zero exit code.
func (t *Tool) Apply(ctx context.Context, path string, patch *Patch) error {
	if patch.IsZero() {
		return nil
	}

	err := unix.Access(path, unix.W_OK)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTargetNotWritable, path, err)
	}

	ctx, stop := context.WithTimeout(ctx, patchelfTimeout)
	defer stop()

	var stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, t.Bin, buildArgs(path, patch)...)
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	if err != nil {
		return &ExecError{
			Err:    err,
			Stderr: stderrBuf.String(),
		}
	}

	return nil
}

func buildArgs(path string, patch *Patch) []string {
	var args []string

	if patch.Interpreter != "" {
		args = append(args, "--set-interpreter", patch.Interpreter)
	}

	if patch.SetRunPath {
		args = append(args, "--set-rpath", strings.Join(patch.RunPath, ":"))
	}

	return append(args, path)
}
