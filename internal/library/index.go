// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package library

import (
	"debug/elf"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aibor/sofix/internal/sys"
)

// InspectFunc reads the metadata of a single file. Production code uses
// [sys.Inspect].
type InspectFunc func(path string) (*sys.Descriptor, error)

// Candidate is one file in a search directory that may provide a soname.
type Candidate struct {
	SONAME  string
	Path    string
	Dir     string
	Class   elf.Class
	Machine elf.Machine
	OSABI   elf.OSABI
}

// Index maps sonames to the candidates providing them.
//
// It is built once by [BuildIndex] and read-only afterwards, so it can be
// shared between resolution workers without locking. Within a soname group,
// candidates keep the order of the search directories they were found in.
// That order is the tie-break for ambiguous providers.
type Index struct {
	providers map[string][]Candidate
	size      int
}

// NewIndex groups the given candidates by soname, preserving their relative
// order.
func NewIndex(candidates []Candidate) *Index {
	idx := &Index{
		providers: make(map[string][]Candidate),
		size:      len(candidates),
	}

	for _, candidate := range candidates {
		idx.providers[candidate.SONAME] = append(
			idx.providers[candidate.SONAME],
			candidate,
		)
	}

	return idx
}

// Providers returns the candidates for the given soname in tie-break order.
func (i *Index) Providers(soname string) []Candidate {
	return i.providers[soname]
}

// Len returns the total number of candidates.
func (i *Index) Len() int {
	return i.size
}

// Options configures [BuildIndex].
type Options struct {
	// Recursive enables descending into subdirectories of the search
	// directories. Default is direct children only.
	Recursive bool

	// Inspect reads file metadata. Defaults to [sys.Inspect].
	Inspect InspectFunc
}

// BuildIndex enumerates all given search directories in order and catalogs
// every ELF file found as a [Candidate].
//
// The candidate's soname is the embedded SONAME if the library carries one,
// the file name otherwise. Files that are not ELF are skipped silently,
// malformed ELF files are skipped with a warning. Identical paths are
// deduplicated. An unreadable search directory returns
// [ErrSearchPathUnavailable].
func BuildIndex(dirs []string, opts Options) (*Index, error) {
	inspect := opts.Inspect
	if inspect == nil {
		inspect = sys.Inspect
	}

	var candidates []Candidate

	seen := make(map[string]bool)

	for _, dir := range dirs {
		absDir, err := sys.AbsolutePath(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSearchPathUnavailable, dir, err)
		}

		paths, err := enumerate(absDir, opts.Recursive)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSearchPathUnavailable, dir, err)
		}

		for _, path := range paths {
			if seen[path] {
				continue
			}

			seen[path] = true

			candidate, ok := inspectCandidate(path, inspect)
			if ok {
				candidates = append(candidates, candidate)
			}
		}
	}

	return NewIndex(candidates), nil
}

func inspectCandidate(path string, inspect InspectFunc) (Candidate, bool) {
	desc, err := inspect(path)
	if err != nil {
		if !errors.Is(err, sys.ErrNotELFFile) {
			slog.Warn("Skipping library candidate",
				slog.String("path", path),
				slog.Any("error", err))
		}

		return Candidate{}, false
	}

	soname := desc.SONAME
	if soname == "" {
		soname = filepath.Base(path)
	}

	candidate := Candidate{
		SONAME:  soname,
		Path:    path,
		Dir:     filepath.Dir(path),
		Class:   desc.Class,
		Machine: desc.Machine,
		OSABI:   desc.OSABI,
	}

	return candidate, true
}

// enumerate lists the regular files of a directory. Symlinks to regular
// files count, since library directories commonly link soname to real name.
func enumerate(dir string, recursive bool) ([]string, error) {
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}

		var paths []string

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if isRegular(path) {
				paths = append(paths, path)
			}
		}

		return paths, nil
	}

	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}

			slog.Warn("Skipping unreadable entry",
				slog.String("path", path),
				slog.Any("error", err))

			return fs.SkipDir
		}

		if !d.IsDir() && isRegular(path) {
			paths = append(paths, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
