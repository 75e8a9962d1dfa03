// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sofix_test

import (
	"context"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aibor/sofix/internal/patchelf"
	"github.com/aibor/sofix/internal/sofix"
	"github.com/aibor/sofix/internal/sys"
)

// fakeWorld keeps ELF metadata for a set of on-disk files in memory. Its
// inspect and apply functions stand in for the real ELF reader and the
// external patchelf tool, so the engine's passes can be observed without
// real binaries.
type fakeWorld struct {
	mu    sync.Mutex
	descs map[string]*sys.Descriptor
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{descs: make(map[string]*sys.Descriptor)}
}

// addFile creates an empty file at the given path and registers its
// metadata. A nil descriptor marks the file as unreadable ELF.
func (w *fakeWorld) addFile(tb testing.TB, path string, desc *sys.Descriptor) {
	tb.Helper()

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(tb, err)

	err = os.WriteFile(path, nil, 0o644)
	require.NoError(tb, err)

	if desc != nil {
		desc.Path = path
	}

	w.descs[path] = desc
}

func (w *fakeWorld) inspect(path string) (*sys.Descriptor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	desc, exists := w.descs[path]
	if !exists {
		return nil, sys.ErrNotELFFile
	}

	if desc == nil {
		return nil, sys.ErrMalformedELF
	}

	clone := *desc
	clone.Needed = slices.Clone(desc.Needed)
	clone.RunPath = slices.Clone(desc.RunPath)

	return &clone, nil
}

func (w *fakeWorld) apply(
	_ context.Context,
	path string,
	patch *patchelf.Patch,
) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	desc := w.descs[path]

	if patch.Interpreter != "" {
		desc.Interpreter = patch.Interpreter
	}

	if patch.SetRunPath {
		desc.RunPath = slices.Clone(patch.RunPath)
	}

	return nil
}

func (w *fakeWorld) runPath(path string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.descs[path].RunPath)
}

func (w *fakeWorld) engine() *sofix.Engine {
	return &sofix.Engine{
		Inspect: w.inspect,
		Apply:   w.apply,
	}
}

func sharedObject(soname string, needed ...string) *sys.Descriptor {
	return &sys.Descriptor{
		Class:   elf.ELFCLASS64,
		Machine: elf.EM_X86_64,
		Type:    elf.ET_DYN,
		SONAME:  soname,
		Needed:  needed,
	}
}

func executable(needed ...string) *sys.Descriptor {
	return &sys.Descriptor{
		Class:       elf.ELFCLASS64,
		Machine:     elf.EM_X86_64,
		Type:        elf.ET_DYN,
		Interpreter: "/buildhost/ld-linux-x86-64.so.2",
		Needed:      needed,
	}
}

func TestEngineRun(t *testing.T) {
	t.Run("transitive dependencies converge in two passes", func(t *testing.T) {
		world := newFakeWorld()

		libDir := filepath.Join(t.TempDir(), "lib")
		binDir := filepath.Join(t.TempDir(), "bin")
		appPath := filepath.Join(binDir, "app")
		fooPath := filepath.Join(libDir, "libfoo.so")

		world.addFile(t, appPath, executable("libfoo.so"))
		world.addFile(t, fooPath, sharedObject("libfoo.so", "libbar.so"))
		world.addFile(t, filepath.Join(libDir, "libbar.so"),
			sharedObject("libbar.so"))

		spec := &sofix.Spec{
			Targets: []string{appPath},
			LibDirs: []string{libDir},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Passes)
		assert.Equal(t, 1, report.Patched)
		assert.False(t, report.Failed())

		assert.Equal(t, []string{libDir}, world.runPath(appPath))
	})

	t.Run("directory target repairs the libraries themselves", func(t *testing.T) {
		world := newFakeWorld()

		libDir := filepath.Join(t.TempDir(), "lib")
		fooPath := filepath.Join(libDir, "libfoo.so")
		barPath := filepath.Join(libDir, "libbar.so")

		world.addFile(t, fooPath, sharedObject("libfoo.so", "libbar.so"))
		world.addFile(t, barPath, sharedObject("libbar.so"))

		spec := &sofix.Spec{
			Targets: []string{libDir},
			LibDirs: []string{libDir},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 2, report.Passes)
		assert.Equal(t, 1, report.Patched)

		assert.Equal(t, []string{libDir}, world.runPath(fooPath))
		assert.Empty(t, world.runPath(barPath))
	})

	t.Run("second run changes nothing", func(t *testing.T) {
		world := newFakeWorld()

		libDir := filepath.Join(t.TempDir(), "lib")
		appPath := filepath.Join(t.TempDir(), "app")

		world.addFile(t, appPath, executable("libfoo.so"))
		world.addFile(t, filepath.Join(libDir, "libfoo.so"),
			sharedObject("libfoo.so"))

		spec := &sofix.Spec{
			Targets: []string{appPath},
			LibDirs: []string{libDir},
		}

		engine := world.engine()

		_, err := engine.Run(t.Context(), spec)
		require.NoError(t, err)

		report, err := engine.Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Passes)
		assert.Zero(t, report.Patched)
	})

	t.Run("interpreter replaced for executables", func(t *testing.T) {
		world := newFakeWorld()

		appPath := filepath.Join(t.TempDir(), "app")
		libDir := t.TempDir()
		libPath := filepath.Join(libDir, "libfoo.so")

		world.addFile(t, appPath, executable())
		world.addFile(t, libPath, sharedObject("libfoo.so"))

		loader := "/nix/ld-linux-x86-64.so.2"
		spec := &sofix.Spec{
			Targets: []string{appPath, libPath},
			LibDirs: []string{libDir},
			Interpreters: map[sys.Arch]string{
				sys.AMD64: loader,
			},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Patched)
		assert.Equal(t, loader, world.descs[appPath].Interpreter)
		assert.Empty(t, world.descs[libPath].Interpreter)
	})

	t.Run("incompatible candidate stays unresolved", func(t *testing.T) {
		world := newFakeWorld()

		libDir := t.TempDir()
		appPath := filepath.Join(t.TempDir(), "app")

		arm64Lib := sharedObject("libfoo.so")
		arm64Lib.Machine = elf.EM_AARCH64

		world.addFile(t, appPath, executable("libfoo.so"))
		world.addFile(t, filepath.Join(libDir, "libfoo.so"), arm64Lib)

		spec := &sofix.Spec{
			Targets: []string{appPath},
			LibDirs: []string{libDir},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 1, report.UnresolvedCount())
		assert.False(t, report.Failed())

		spec.Strict = true

		report, err = world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.True(t, report.Failed())
	})

	t.Run("patch failure does not affect other files", func(t *testing.T) {
		world := newFakeWorld()

		libDir := t.TempDir()
		goodPath := filepath.Join(t.TempDir(), "good")
		badPath := filepath.Join(t.TempDir(), "bad")

		world.addFile(t, goodPath, executable("libfoo.so"))
		world.addFile(t, badPath, executable("libfoo.so"))
		world.addFile(t, filepath.Join(libDir, "libfoo.so"),
			sharedObject("libfoo.so"))

		errApply := errors.New("section table corrupt")

		engine := world.engine()
		engine.Apply = func(
			ctx context.Context, path string, patch *patchelf.Patch,
		) error {
			if path == badPath {
				return errApply
			}

			return world.apply(ctx, path, patch)
		}

		spec := &sofix.Spec{
			Targets: []string{goodPath, badPath},
			LibDirs: []string{libDir},
		}

		report, err := engine.Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Patched)
		assert.Equal(t, 1, report.PatchFailureCount())
		assert.True(t, report.Failed())

		assert.Equal(t, []string{libDir}, world.runPath(goodPath))
		assert.Empty(t, world.runPath(badPath))
	})

	t.Run("ineffective tool hits the pass limit", func(t *testing.T) {
		world := newFakeWorld()

		libDir := t.TempDir()
		appPath := filepath.Join(t.TempDir(), "app")

		world.addFile(t, appPath, executable("libfoo.so"))
		world.addFile(t, filepath.Join(libDir, "libfoo.so"),
			sharedObject("libfoo.so"))

		engine := world.engine()
		engine.Apply = func(
			context.Context, string, *patchelf.Patch,
		) error {
			// Reports success but never changes the file.
			return nil
		}

		spec := &sofix.Spec{
			Targets: []string{appPath},
			LibDirs: []string{libDir},
		}

		_, err := engine.Run(t.Context(), spec)

		require.ErrorIs(t, err, sofix.ErrFixedPointNotReached)
	})

	t.Run("unreadable ELF file is reported skipped", func(t *testing.T) {
		world := newFakeWorld()

		badPath := filepath.Join(t.TempDir(), "truncated")
		world.addFile(t, badPath, nil)

		spec := &sofix.Spec{
			Targets: []string{badPath},
			LibDirs: []string{t.TempDir()},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		require.Len(t, report.Skipped, 1)
		assert.Equal(t, badPath, report.Skipped[0].Path)
		assert.ErrorIs(t, report.Skipped[0].Err, sys.ErrMalformedELF)
		assert.Empty(t, report.Files)
	})

	t.Run("static executable is not touched", func(t *testing.T) {
		world := newFakeWorld()

		staticPath := filepath.Join(t.TempDir(), "static")
		staticDesc := &sys.Descriptor{
			Class:   elf.ELFCLASS64,
			Machine: elf.EM_X86_64,
			Type:    elf.ET_EXEC,
			Static:  true,
		}
		world.addFile(t, staticPath, staticDesc)

		spec := &sofix.Spec{
			Targets: []string{staticPath},
			LibDirs: []string{t.TempDir()},
		}

		report, err := world.engine().Run(t.Context(), spec)
		require.NoError(t, err)

		assert.Empty(t, report.Files)
		assert.Empty(t, report.Skipped)
		assert.Zero(t, report.Patched)
	})

	t.Run("no targets", func(t *testing.T) {
		world := newFakeWorld()

		_, err := world.engine().Run(t.Context(), &sofix.Spec{})

		require.ErrorIs(t, err, sofix.ErrNoTargets)
	})

	t.Run("missing target path is fatal", func(t *testing.T) {
		world := newFakeWorld()

		spec := &sofix.Spec{
			Targets: []string{filepath.Join(t.TempDir(), "nonexistent")},
			LibDirs: []string{t.TempDir()},
		}

		_, err := world.engine().Run(t.Context(), spec)

		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("canceled context stops the run", func(t *testing.T) {
		world := newFakeWorld()

		appPath := filepath.Join(t.TempDir(), "app")
		world.addFile(t, appPath, executable())

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		spec := &sofix.Spec{
			Targets: []string{appPath},
			LibDirs: []string{t.TempDir()},
		}

		_, err := world.engine().Run(ctx, spec)

		require.ErrorIs(t, err, context.Canceled)
	})
}
