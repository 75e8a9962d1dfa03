// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package patchelf

import (
	"errors"
	"fmt"
)

// ErrTargetNotWritable is returned if the file to patch cannot be written.
var ErrTargetNotWritable = errors.New("target file not writable")

// ExecError wraps errors of the patchelf invocation together with its
// captured standard error output.
type ExecError struct {
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("patchelf: %v", e.Err)

	stderr := e.Stderr
	if stderr != "" {
		msg += ": " + stderr
	}

	return msg
}

func (e *ExecError) Is(other error) bool {
	_, ok := other.(*ExecError)
	return ok
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
