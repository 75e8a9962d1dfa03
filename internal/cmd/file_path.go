// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"slices"
	"strings"

	"github.com/aibor/sofix/internal/sys"
)

// FilePath is a single path flag value, made absolute on set.
type FilePath struct {
	value *string
}

func (f FilePath) String() string {
	if f.value == nil {
		return ""
	}

	return *f.value
}

func (f FilePath) Set(s string) error {
	path, err := sys.AbsolutePath(s)
	if err != nil {
		return err
	}

	*f.value = path

	return nil
}

// FilePathList is a repeatable path list flag value. Values may be given as
// multiple flags or comma separated. An empty value resets the list.
type FilePathList struct {
	values *[]string
}

func (f FilePathList) String() string {
	if f.values == nil {
		return ""
	}

	return strings.Join(*f.values, ",")
}

func (f FilePathList) Set(s string) error {
	if s == "" {
		*f.values = nil
		return nil
	}

	for _, value := range strings.Split(s, ",") {
		path, err := sys.AbsolutePath(value)
		if err != nil {
			return err
		}

		*f.values = append(*f.values, path)
	}

	return nil
}

// StringList is a repeatable plain string list flag value, comma separated.
// Unlike [FilePathList] the values are kept verbatim.
type StringList struct {
	values *[]string
}

func (f StringList) String() string {
	if f.values == nil {
		return ""
	}

	return strings.Join(*f.values, ",")
}

func (f StringList) Set(s string) error {
	for _, value := range strings.Split(s, ",") {
		if value != "" {
			*f.values = append(*f.values, value)
		}
	}

	return nil
}

// InterpreterMap is a repeatable arch=path flag value for the dynamic
// loader table. The path is part of the repaired runtime environment, so it
// is kept verbatim and never resolved against the working directory.
type InterpreterMap map[sys.Arch]string

func (m InterpreterMap) String() string {
	pairs := make([]string, 0, len(m))

	for arch, path := range m {
		pairs = append(pairs, arch.String()+"="+path)
	}

	slices.Sort(pairs)

	return strings.Join(pairs, ",")
}

func (m InterpreterMap) Set(s string) error {
	archName, path, found := strings.Cut(s, "=")
	if !found || path == "" {
		return ErrInvalidInterpreter
	}

	arch, err := sys.ParseArch(archName)
	if err != nil {
		return err
	}

	m[arch] = path

	return nil
}
