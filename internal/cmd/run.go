// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"

	"github.com/aibor/sofix/internal/sofix"
	"github.com/aibor/sofix/internal/sys"
)

// Exit codes of the command. Failures of individual files map to
// [exitFailure], run-fatal conditions to [exitFatal].
const (
	exitSuccess = 0
	exitFailure = 1
	exitFatal   = 2
)

// IO provides output details for the command.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

func newSpec() *sofix.Spec {
	return &sofix.Spec{
		Interpreters: make(map[sys.Arch]string),
		Patchelf:     DefaultPatchelf(),
	}
}

func parseArgs(args []string, spec *sofix.Spec, errWriter io.Writer) error {
	flags := NewFlags(filepath.Base(args[0]), spec, errWriter)

	// Environment arguments first, so the command line takes precedence.
	allArgs := append(EnvArgs(), args[1:]...)

	err := flags.ParseArgs(allArgs)
	if err != nil {
		return err
	}

	setupLogging(errWriter, flags.logLevel())

	return nil
}

func validate(spec *sofix.Spec) error {
	_, err := exec.LookPath(spec.Patchelf)
	if err != nil {
		return fmt.Errorf("patchelf binary: %w", err)
	}

	return nil
}

func handleParseArgsError(err error) int {
	// [ErrHelp] is returned when help or version output is requested, so
	// exit without error in this case.
	if errors.Is(err, ErrHelp) {
		return exitSuccess
	}

	// Fail already prints parse errors, so only print others.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return exitFatal
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	spec := newSpec()

	err := parseArgs(args, spec, cfg.Stderr)
	if err != nil {
		return handleParseArgsError(err)
	}

	err = validate(spec)
	if err != nil {
		slog.Error(err.Error())
		return exitFatal
	}

	report, err := sofix.Run(ctx, spec)
	if err != nil {
		slog.Error(err.Error())
		return exitFatal
	}

	fmt.Fprint(cfg.Stdout, report)

	if report.Failed() {
		return exitFailure
	}

	return exitSuccess
}
