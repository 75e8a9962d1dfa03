// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sys

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"strings"
)

// Descriptor is the dynamic-linking metadata of a single ELF file.
//
// It is an immutable snapshot. Once the file is rewritten, a new Descriptor
// must be read with [Inspect].
type Descriptor struct {
	Path        string
	Class       elf.Class
	Machine     elf.Machine
	OSABI       elf.OSABI
	Type        elf.Type
	SONAME      string
	Interpreter string
	Needed      []string
	RunPath     []string

	// Static is set for files without dynamic-linking metadata, like
	// statically linked executables and relocatable objects. They have
	// nothing to repair and are skipped.
	Static bool
}

// IsExecutable reports whether the file is run through a dynamic loader.
//
// The ELF type is not sufficient since position-independent executables are
// of type DYN. An interpreter entry is what actually distinguishes them from
// shared objects.
func (d *Descriptor) IsExecutable() bool {
	return d.Interpreter != ""
}

// Arch returns the architecture lookup key for the file.
func (d *Descriptor) Arch() (Arch, error) {
	return ArchFor(d.Machine, d.Class)
}

// Compatible reports whether a library file may satisfy a needed entry of
// the given file. Bit-width class and machine must match exactly. The OS ABI
// just must not contradict, with the base System V ABI treated as compatible
// with everything.
func Compatible(file, lib *Descriptor) bool {
	if file.Class != lib.Class || file.Machine != lib.Machine {
		return false
	}

	return osABICompatible(file.OSABI, lib.OSABI)
}

func osABICompatible(want, got elf.OSABI) bool {
	if want == elf.ELFOSABI_NONE || got == elf.ELFOSABI_NONE {
		return true
	}

	return want == got
}

// Inspect reads the dynamic-linking metadata of the ELF file with the given
// path.
//
// It returns [ErrNotELFFile] if the file does not start with the ELF magic
// number and [ErrMalformedELF] if the headers or the dynamic section cannot
// be read.
func Inspect(path string) (*Descriptor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer file.Close()

	var magic [4]byte

	_, err = io.ReadFull(file, magic[:])
	if err != nil || !bytes.Equal(magic[:], []byte(elf.ELFMAG)) {
		return nil, fmt.Errorf("%w: %s", ErrNotELFFile, path)
	}

	elfFile, err := elf.NewFile(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedELF, path, err)
	}

	desc := &Descriptor{
		Path:    path,
		Class:   elfFile.Class,
		Machine: elfFile.Machine,
		OSABI:   elfFile.OSABI,
		Type:    elfFile.Type,
	}

	desc.Interpreter, err = readInterpreter(elfFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedELF, path, err)
	}

	desc.Needed, err = elfFile.ImportedLibraries()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedELF, path, err)
	}

	desc.SONAME, err = readSONAME(elfFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedELF, path, err)
	}

	desc.RunPath, err = readRunPath(elfFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedELF, path, err)
	}

	desc.Static = len(elfFile.Progs) == 0 ||
		(elfFile.Type == elf.ET_EXEC && desc.Interpreter == "")

	return desc, nil
}

func readInterpreter(elfFile *elf.File) (string, error) {
	for _, prog := range elfFile.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}

		data, err := io.ReadAll(prog.Open())
		if err != nil {
			return "", fmt.Errorf("read interp segment: %w", err)
		}

		return string(bytes.TrimRight(data, "\x00")), nil
	}

	return "", nil
}

func readSONAME(elfFile *elf.File) (string, error) {
	names, err := elfFile.DynString(elf.DT_SONAME)
	if err != nil {
		return "", fmt.Errorf("read soname: %w", err)
	}

	if len(names) == 0 {
		return "", nil
	}

	return names[0], nil
}

// readRunPath reads the runtime search path entries. DT_RUNPATH takes
// precedence over the deprecated DT_RPATH, as the dynamic loader ignores
// DT_RPATH once DT_RUNPATH is present.
func readRunPath(elfFile *elf.File) ([]string, error) {
	for _, tag := range []elf.DynTag{elf.DT_RUNPATH, elf.DT_RPATH} {
		values, err := elfFile.DynString(tag)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tag, err)
		}

		dirs := splitSearchPath(values)
		if len(dirs) > 0 {
			return dirs, nil
		}
	}

	return nil, nil
}

func splitSearchPath(values []string) []string {
	var dirs []string

	for _, value := range values {
		for dir := range strings.SplitSeq(value, ":") {
			if dir != "" {
				dirs = append(dirs, dir)
			}
		}
	}

	return dirs
}
