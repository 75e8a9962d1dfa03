// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sofix

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aibor/sofix/internal/resolve"
)

// SkippedFile is a file that looked like ELF but could not be read.
type SkippedFile struct {
	Path string
	Err  error
}

// FileStatus is the final per-file outcome of a run.
type FileStatus struct {
	Path       string
	SearchPath []string
	Unresolved []string
	Ignored    []string
	Ambiguous  []resolve.Note
	PatchErr   error
}

// Report is the aggregated outcome of a [Run].
//
// Warnings (skipped files, ambiguous providers, ignored missing sonames)
// are kept apart from failures (unresolved sonames, patch errors), so
// automation can distinguish "ran with notes" from "must be fixed".
type Report struct {
	Files   []FileStatus
	Skipped []SkippedFile
	Strict  bool
	Passes  int
	Patched int
}

func (r *Report) collect(targets []*target) {
	for _, tgt := range targets {
		r.Files = append(r.Files, FileStatus{
			Path:       tgt.desc.Path,
			SearchPath: tgt.res.SearchPath,
			Unresolved: tgt.res.Unresolved,
			Ignored:    tgt.res.Ignored,
			Ambiguous:  tgt.res.Ambiguous,
			PatchErr:   tgt.patchErr,
		})
	}

	slices.SortFunc(r.Files, func(a, b FileStatus) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// UnresolvedCount returns the total number of unresolved needed sonames.
func (r *Report) UnresolvedCount() int {
	count := 0

	for _, file := range r.Files {
		count += len(file.Unresolved)
	}

	return count
}

// PatchFailureCount returns the number of files whose patch attempt failed.
func (r *Report) PatchFailureCount() int {
	count := 0

	for _, file := range r.Files {
		if file.PatchErr != nil {
			count++
		}
	}

	return count
}

// Failed reports whether the run must be treated as failed. Patch failures
// always fail the run, unresolved sonames only in strict mode.
func (r *Report) Failed() bool {
	if r.PatchFailureCount() > 0 {
		return true
	}

	return r.Strict && r.UnresolvedCount() > 0
}

// String renders the human readable summary.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "processed %d files in %d passes, %d rewrites\n",
		len(r.Files), r.Passes, r.Patched)

	for _, file := range r.Files {
		if len(file.SearchPath) == 0 && len(file.Unresolved) == 0 {
			continue
		}

		fmt.Fprintf(&b, "%s\n", file.Path)

		if len(file.SearchPath) > 0 {
			fmt.Fprintf(&b, "    search path: %s\n",
				strings.Join(file.SearchPath, ":"))
		}

		if len(file.Unresolved) > 0 {
			fmt.Fprintf(&b, "    unresolved: %s\n",
				strings.Join(file.Unresolved, " "))
		}
	}

	r.writeWarnings(&b)
	r.writeFailures(&b)

	return b.String()
}

func (r *Report) writeWarnings(b *strings.Builder) {
	var lines []string

	for _, skipped := range r.Skipped {
		lines = append(lines, fmt.Sprintf("malformed ELF skipped: %s: %v",
			skipped.Path, skipped.Err))
	}

	for _, file := range r.Files {
		for _, note := range file.Ambiguous {
			lines = append(lines, fmt.Sprintf(
				"ambiguous provider for %s wanted by %s: chose %s over %d more",
				note.SONAME, file.Path, note.Chosen, note.Others))
		}

		for _, soname := range file.Ignored {
			lines = append(lines, fmt.Sprintf(
				"missing %s wanted by %s ignored", soname, file.Path))
		}

		if !r.Strict {
			for _, soname := range file.Unresolved {
				lines = append(lines, fmt.Sprintf(
					"could not satisfy %s wanted by %s", soname, file.Path))
			}
		}
	}

	writeSection(b, "warnings", lines)
}

func (r *Report) writeFailures(b *strings.Builder) {
	var lines []string

	for _, file := range r.Files {
		if r.Strict {
			for _, soname := range file.Unresolved {
				lines = append(lines, fmt.Sprintf(
					"could not satisfy %s wanted by %s", soname, file.Path))
			}
		}

		if file.PatchErr != nil {
			lines = append(lines, fmt.Sprintf("patch failed: %s: %v",
				file.Path, file.PatchErr))
		}
	}

	writeSection(b, "failures", lines)
}

func writeSection(b *strings.Builder, name string, lines []string) {
	if len(lines) == 0 {
		return
	}

	fmt.Fprintf(b, "%s:\n", name)

	for _, line := range lines {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
