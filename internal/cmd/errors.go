// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"flag"
	"fmt"
)

var (
	// ErrHelp is returned if usage output was requested.
	ErrHelp = flag.ErrHelp

	// ErrInvalidInterpreter is returned for -interpreter values that are
	// not of the form arch=path.
	ErrInvalidInterpreter = errors.New("interpreter must be given as arch=path")

	// ErrReadBuildInfo is returned if the build info is not available.
	ErrReadBuildInfo = errors.New("build info not available")
)

// ParseArgsError wraps errors that occur during argument parsing.
type ParseArgsError struct {
	err error
	msg string
}

func (e *ParseArgsError) Error() string {
	if e.err == nil {
		return e.msg
	}

	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *ParseArgsError) Is(other error) bool {
	_, ok := other.(*ParseArgsError)
	return ok
}

func (e *ParseArgsError) Unwrap() error {
	return e.err
}
