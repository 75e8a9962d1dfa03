// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/aibor/sofix/internal/sofix"
	"github.com/aibor/sofix/internal/sys"
)

// Set on build.
var version = "dev"

type Flags struct {
	name string
	spec *sofix.Spec

	noRecurseFlag bool
	verboseFlag   bool
	debugFlag     bool
	versionFlag   bool
	flagSet       *flag.FlagSet
}

func NewFlags(name string, spec *sofix.Spec, output io.Writer) *Flags {
	flags := &Flags{
		name: name,
		spec: spec,
	}

	flags.initFlagset(output)

	return flags
}

func (f *Flags) initFlagset(output io.Writer) {
	fsName := f.name + " [flags...] target..."
	fs := flag.NewFlagSet(fsName, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.Var(
		FilePathList{&f.spec.LibDirs},
		"lib",
		"library search directory, in precedence order. Flag may be used"+
			" more than once.",
	)

	fs.Var(
		InterpreterMap(f.spec.Interpreters),
		"interpreter",
		"dynamic loader path as arch=path, e.g."+
			" amd64=/lib64/ld-linux-x86-64.so.2. Flag may be used more than"+
			" once.",
	)

	fs.BoolVar(
		&f.spec.Strict,
		"strict",
		f.spec.Strict,
		"fail the run if any needed soname stays unresolved",
	)

	fs.BoolVar(
		&f.spec.RecursiveLibDirs,
		"recursive-libs",
		f.spec.RecursiveLibDirs,
		"descend into subdirectories of library search directories",
	)

	fs.BoolVar(
		&f.noRecurseFlag,
		"no-recurse",
		f.noRecurseFlag,
		"do not expand directory targets recursively",
	)

	fs.Var(
		FilePathList{&f.spec.RuntimeDeps},
		"runtime-dep",
		"directory to prepend to the search path of executables. Flag may"+
			" be used more than once.",
	)

	fs.Var(
		FilePathList{&f.spec.AppendPaths},
		"append-path",
		"directory to append to every rewritten search path. Flag may be"+
			" used more than once.",
	)

	fs.Var(
		FilePath{&f.spec.LibcDir},
		"libc-dir",
		"library directory of the supplied loader's libc. Needs found"+
			" there are not added to search paths.",
	)

	fs.Var(
		StringList{&f.spec.IgnoreMissing},
		"ignore-missing",
		"glob pattern for sonames whose absence is only warned about."+
			" Flag may be used more than once.",
	)

	fs.StringVar(
		&f.spec.Patchelf,
		"patchelf",
		f.spec.Patchelf,
		"patchelf binary to use",
	)

	fs.BoolVar(
		&f.verboseFlag,
		"verbose",
		f.verboseFlag,
		"enable informational output",
	)

	fs.BoolVar(
		&f.debugFlag,
		"debug",
		f.debugFlag,
		"enable debug output",
	)

	fs.BoolVar(
		&f.versionFlag,
		"version",
		f.versionFlag,
		"show version and exit",
	)

	f.flagSet = fs
}

// Fail fails like flag does. It prints the error first and then usage.
func (f *Flags) Fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *Flags) logLevel() slog.Level {
	switch {
	case f.debugFlag:
		return slog.LevelDebug
	case f.verboseFlag:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func (f *Flags) printVersionInformation() error {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo
	}

	fmt.Fprintf(f.flagSet.Output(), "%s: %s\n\n", f.name, version)
	fmt.Fprintln(f.flagSet.Output(), buildInfo.String())

	return nil
}

func (f *Flags) ParseArgs(args []string) error {
	if err := f.flagSet.Parse(args); err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	// With version flag, just print the version and exit. Using [ErrHelp]
	// the main binary is supposed to return with a non error exit code.
	if f.versionFlag {
		if err := f.printVersionInformation(); err != nil {
			return err
		}

		return &ParseArgsError{msg: "version requested", err: ErrHelp}
	}

	if f.flagSet.NArg() == 0 {
		return f.Fail("no target paths given", nil)
	}

	for _, arg := range f.flagSet.Args() {
		path, err := sys.AbsolutePath(arg)
		if err != nil {
			return f.Fail("target path", err)
		}

		f.spec.Targets = append(f.spec.Targets, path)
	}

	if len(f.spec.LibDirs) == 0 {
		return f.Fail("no library directory given (use -lib)", nil)
	}

	f.spec.RecursiveTargets = !f.noRecurseFlag

	return nil
}
