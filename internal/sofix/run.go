// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sofix

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aibor/sofix/internal/library"
	"github.com/aibor/sofix/internal/patchelf"
	"github.com/aibor/sofix/internal/resolve"
	"github.com/aibor/sofix/internal/sys"
)

// passLimit bounds the resolve and patch iteration. With a static index a
// run converges within two passes, so hitting the limit is an anomaly.
const passLimit = 8

// ApplyFunc rewrites one file's metadata. Production code uses
// [patchelf.Tool.Apply].
type ApplyFunc func(ctx context.Context, path string, patch *patchelf.Patch) error

// Engine runs the resolve and patch passes over all target files.
//
// The zero value uses [sys.Inspect] and the external patchelf tool.
type Engine struct {
	Inspect library.InspectFunc
	Apply   ApplyFunc
}

// target is the per-file state of a run. Each target is owned by a single
// worker at a time, so no locking is needed.
type target struct {
	desc     *sys.Descriptor
	res      resolve.Resolution
	patchErr error
}

// Run executes a complete repair run with the default [Engine].
func Run(ctx context.Context, spec *Spec) (*Report, error) {
	engine := Engine{}
	return engine.Run(ctx, spec)
}

// Run repairs all target files of the given [Spec].
//
// It builds the library index once, then alternates resolution and patch
// passes until a pass performs no rewrites. Per-file problems are collected
// in the returned [Report]. The returned error is non-nil only for run-fatal
// conditions: unusable search directories, unusable target arguments,
// context cancellation and a missed fixed point.
func (e *Engine) Run(ctx context.Context, spec *Spec) (*Report, error) {
	if len(spec.Targets) == 0 {
		return nil, ErrNoTargets
	}

	inspect := e.Inspect
	if inspect == nil {
		inspect = sys.Inspect
	}

	apply := e.Apply
	if apply == nil {
		bin := spec.Patchelf
		if bin == "" {
			bin = "patchelf"
		}

		tool := &patchelf.Tool{Bin: bin}
		apply = tool.Apply
	}

	idx, err := library.BuildIndex(spec.LibDirs, library.Options{
		Recursive: spec.RecursiveLibDirs,
		Inspect:   inspect,
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Library index built",
		slog.Int("candidates", idx.Len()),
		slog.Int("dirs", len(spec.LibDirs)))

	paths, err := collectTargets(spec.Targets, spec.RecursiveTargets)
	if err != nil {
		return nil, err
	}

	report := &Report{Strict: spec.Strict}
	targets := scan(paths, inspect, report)

	opts := resolve.Options{
		RuntimeDeps:   spec.RuntimeDeps,
		AppendPaths:   spec.AppendPaths,
		LibcDir:       spec.LibcDir,
		IgnoreMissing: spec.IgnoreMissing,
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if report.Passes == passLimit {
			return report, fmt.Errorf(
				"%w: %d passes", ErrFixedPointNotReached, report.Passes,
			)
		}

		report.Passes++

		patched := pass(ctx, targets, idx, spec, opts, inspect, apply)
		if patched == 0 {
			break
		}

		report.Patched += patched
	}

	report.collect(targets)

	return report, nil
}

// scan inspects all target paths in parallel and keeps the patchable ones.
func scan(
	paths []string,
	inspect library.InspectFunc,
	report *Report,
) []*target {
	descs := make([]*sys.Descriptor, len(paths))
	errs := make([]error, len(paths))

	group := errgroup.Group{}
	group.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		group.Go(func() error {
			descs[i], errs[i] = inspect(path)
			return nil
		})
	}

	_ = group.Wait()

	var targets []*target

	for i, path := range paths {
		switch {
		case errors.Is(errs[i], sys.ErrNotELFFile):
			// Not every file in a target directory is expected to be ELF.
		case errs[i] != nil:
			report.Skipped = append(report.Skipped, SkippedFile{
				Path: path,
				Err:  errs[i],
			})
		case descs[i].Static:
			slog.Debug("Skipping file without dynamic metadata",
				slog.String("path", path))
		default:
			targets = append(targets, &target{desc: descs[i]})
		}
	}

	return targets
}

// pass resolves all targets against the index and patches those whose
// metadata must change. It returns the number of files rewritten.
func pass(
	ctx context.Context,
	targets []*target,
	idx *library.Index,
	spec *Spec,
	opts resolve.Options,
	inspect library.InspectFunc,
	apply ApplyFunc,
) int {
	resolveGroup := errgroup.Group{}
	resolveGroup.SetLimit(runtime.GOMAXPROCS(0))

	for _, tgt := range targets {
		resolveGroup.Go(func() error {
			tgt.res = resolve.Resolve(tgt.desc, idx, opts)
			return nil
		})
	}

	_ = resolveGroup.Wait()

	patched := make([]bool, len(targets))

	// One goroutine per distinct file path, so rewriting never interleaves
	// with a concurrent access to the same file.
	patchGroup := errgroup.Group{}
	patchGroup.SetLimit(runtime.GOMAXPROCS(0))

	for i, tgt := range targets {
		// A file that failed to patch is left alone for the rest of the
		// run. Retrying could never terminate.
		if tgt.patchErr != nil {
			continue
		}

		patch := buildPatch(tgt, spec)
		if patch.IsZero() {
			continue
		}

		patchGroup.Go(func() error {
			patched[i] = patchTarget(ctx, tgt, patch, inspect, apply)
			return nil
		})
	}

	_ = patchGroup.Wait()

	count := 0

	for _, done := range patched {
		if done {
			count++
		}
	}

	return count
}

func buildPatch(tgt *target, spec *Spec) *patchelf.Patch {
	patch := &patchelf.Patch{}

	interp := wantInterpreter(tgt.desc, spec.Interpreters)
	if interp != "" && interp != tgt.desc.Interpreter {
		patch.Interpreter = interp
	}

	if tgt.res.PathChanged(tgt.desc) {
		patch.SetRunPath = true
		patch.RunPath = tgt.res.SearchPath
	}

	return patch
}

// wantInterpreter returns the supplied loader path for the file's
// architecture. Only executables get an interpreter, shared objects never
// carry one.
func wantInterpreter(
	desc *sys.Descriptor,
	interpreters map[sys.Arch]string,
) string {
	if !desc.IsExecutable() {
		return ""
	}

	arch, err := desc.Arch()
	if err != nil {
		slog.Debug("No loader lookup key for file",
			slog.String("path", desc.Path),
			slog.Any("error", err))

		return ""
	}

	return interpreters[arch]
}

// patchTarget applies the patch and re-inspects the file, so the next pass
// resolves against its new metadata. It reports whether the file was
// rewritten.
func patchTarget(
	ctx context.Context,
	tgt *target,
	patch *patchelf.Patch,
	inspect library.InspectFunc,
	apply ApplyFunc,
) bool {
	path := tgt.desc.Path

	err := apply(ctx, path, patch)
	if err != nil {
		tgt.patchErr = err

		slog.Warn("Patch failed",
			slog.String("path", path),
			slog.Any("error", err))

		return false
	}

	slog.Info("Patched file",
		slog.String("path", path),
		slog.String("searchpath", strings.Join(patch.RunPath, ":")),
		slog.String("interpreter", patch.Interpreter))

	desc, err := inspect(path)
	if err != nil {
		tgt.patchErr = fmt.Errorf("re-inspect after patch: %w", err)
		return true
	}

	tgt.desc = desc

	return true
}

// collectTargets expands the target arguments into the list of files to
// repair. Directory entries that are symlinks are skipped, so one inode is
// patched once even when it is linked under several names.
func collectTargets(args []string, recursive bool) ([]string, error) {
	var paths []string

	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true

			paths = append(paths, path)
		}
	}

	for _, arg := range args {
		abs, err := sys.AbsolutePath(arg)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", arg, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}

		if !info.IsDir() {
			if info.Mode().IsRegular() {
				add(abs)
			}

			continue
		}

		files, err := targetDirFiles(abs, recursive)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", arg, err)
		}

		for _, path := range files {
			add(path)
		}
	}

	return paths, nil
}

func targetDirFiles(dir string, recursive bool) ([]string, error) {
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		var paths []string

		for _, entry := range entries {
			if entry.Type().IsRegular() {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}

		return paths, nil
	}

	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}
