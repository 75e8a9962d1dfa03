// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sofix

import "github.com/aibor/sofix/internal/sys"

// Spec describes a single [Run].
type Spec struct {
	// Targets are the files to repair. Directory targets are expanded to
	// the regular files they contain.
	Targets []string

	// LibDirs are the library search directories in resolution precedence
	// order.
	LibDirs []string

	// Interpreters maps architectures to the dynamic loader path to set on
	// executables. The paths are supplied by the caller, never derived.
	// Executables of an architecture without an entry keep their
	// interpreter.
	Interpreters map[sys.Arch]string

	// Strict makes unresolved needed sonames fail the run.
	Strict bool

	// RecursiveTargets expands directory targets recursively.
	RecursiveTargets bool

	// RecursiveLibDirs descends into subdirectories of the library search
	// directories. Default is direct children only, matching the usual
	// layout of library directories.
	RecursiveLibDirs bool

	// RuntimeDeps are directories prepended to the search path of
	// executables.
	RuntimeDeps []string

	// AppendPaths are directories appended to every resolved search path.
	AppendPaths []string

	// LibcDir exempts needs the supplied loader resolves from its own libc
	// directory.
	LibcDir string

	// IgnoreMissing holds glob patterns for sonames whose absence is only
	// warned about, even in strict mode.
	IgnoreMissing []string

	// Patchelf is the patchelf executable to use. Defaults to "patchelf".
	Patchelf string
}
