// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package resolve

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/aibor/sofix/internal/library"
	"github.com/aibor/sofix/internal/sys"
)

// Note records an ambiguous provider choice. Informational only, the
// tie-break is deterministic.
type Note struct {
	SONAME string
	Chosen string
	Others int
}

// Resolution is the outcome of matching one file's needed sonames against
// the index. It is recomputed every pass and never persisted.
type Resolution struct {
	// SearchPath is the ordered, deduplicated list of directories the file
	// must search at runtime.
	SearchPath []string

	// Unresolved lists needed sonames no compatible candidate exists for.
	Unresolved []string

	// Ignored lists unresolved sonames matched by an ignore pattern.
	Ignored []string

	// Ambiguous notes sonames with more than one compatible candidate.
	Ambiguous []Note
}

// PathChanged reports whether the resolved search path differs from the
// file's current one. The comparison is order-insensitive, so a mere
// reordering does not force a rewrite.
func (r *Resolution) PathChanged(desc *sys.Descriptor) bool {
	return !equalPathSet(desc.RunPath, r.SearchPath)
}

func equalPathSet(current, resolved []string) bool {
	if len(current) == 0 && len(resolved) == 0 {
		return true
	}

	currentSet := make(map[string]bool, len(current))
	for _, dir := range current {
		currentSet[dir] = true
	}

	resolvedSet := make(map[string]bool, len(resolved))
	for _, dir := range resolved {
		resolvedSet[dir] = true
	}

	if len(currentSet) != len(resolvedSet) {
		return false
	}

	for dir := range resolvedSet {
		if !currentSet[dir] {
			return false
		}
	}

	return true
}

// Options carries the resolution policy knobs.
type Options struct {
	// RuntimeDeps are directories prepended to the search path of
	// executables.
	RuntimeDeps []string

	// AppendPaths are directories appended to every resolved search path.
	AppendPaths []string

	// LibcDir is the directory of the libc the supplied dynamic loader
	// belongs to. Needs found there are resolved by the loader's defaults
	// and do not require a search path entry.
	LibcDir string

	// IgnoreMissing holds [path.Match] patterns for sonames whose absence
	// is acceptable.
	IgnoreMissing []string
}

// Resolve matches each needed soname of the given file against the index.
//
// A candidate is eligible if its class and machine match the file exactly
// and it is not the file itself. The first eligible candidate in index order
// wins; further eligible candidates are noted as ambiguous. The containing
// directory of each winner ends up in the resolved search path, deduplicated
// in selection order.
func Resolve(
	desc *sys.Descriptor,
	idx *library.Index,
	opts Options,
) Resolution {
	var res Resolution

	if desc.IsExecutable() {
		for _, dir := range opts.RuntimeDeps {
			res.addSearchDir(dir)
		}
	}

	for _, soname := range desc.Needed {
		if satisfiedWithoutSearchPath(soname, opts.LibcDir) {
			continue
		}

		candidate, others, found := selectProvider(desc, idx, soname)
		if !found {
			if matchesAny(soname, opts.IgnoreMissing) {
				res.Ignored = append(res.Ignored, soname)
			} else {
				res.Unresolved = append(res.Unresolved, soname)
			}

			continue
		}

		if others > 0 {
			res.Ambiguous = append(res.Ambiguous, Note{
				SONAME: soname,
				Chosen: candidate.Path,
				Others: others,
			})
		}

		res.addSearchDir(candidate.Dir)
	}

	for _, dir := range opts.AppendPaths {
		res.addSearchDir(dir)
	}

	return res
}

func (r *Resolution) addSearchDir(dir string) {
	if !slices.Contains(r.SearchPath, dir) {
		r.SearchPath = append(r.SearchPath, dir)
	}
}

// satisfiedWithoutSearchPath reports needs the dynamic loader resolves on
// its own: absolute paths that exist, and libraries shipped next to the
// supplied loader's libc.
func satisfiedWithoutSearchPath(soname, libcDir string) bool {
	if filepath.IsAbs(soname) {
		return fileExists(soname)
	}

	return libcDir != "" && fileExists(filepath.Join(libcDir, soname))
}

func selectProvider(
	desc *sys.Descriptor,
	idx *library.Index,
	soname string,
) (library.Candidate, int, bool) {
	var (
		chosen library.Candidate
		others int
		found  bool
	)

	for _, candidate := range idx.Providers(soname) {
		// A file never provides its own need.
		if candidate.Path == desc.Path {
			continue
		}

		if !compatible(desc, candidate) {
			continue
		}

		if !found {
			chosen = candidate
			found = true

			continue
		}

		others++
	}

	return chosen, others, found
}

func compatible(desc *sys.Descriptor, candidate library.Candidate) bool {
	lib := &sys.Descriptor{
		Class:   candidate.Class,
		Machine: candidate.Machine,
		OSABI:   candidate.OSABI,
	}

	return sys.Compatible(desc, lib)
}

func matchesAny(soname string, patterns []string) bool {
	for _, pattern := range patterns {
		ok, err := path.Match(pattern, soname)
		if err != nil {
			slog.Warn("Invalid ignore pattern",
				slog.String("pattern", pattern),
				slog.Any("error", err))

			continue
		}

		if ok {
			return true
		}
	}

	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
