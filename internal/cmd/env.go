// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"strings"

	"github.com/xyproto/env/v2"
)

// EnvArgs returns sofix arguments from the environment. They are parsed
// before the command line arguments, so the command line takes precedence.
func EnvArgs() []string {
	return strings.Fields(env.Str("SOFIX_ARGS"))
}

// DefaultPatchelf returns the patchelf binary to use by default.
func DefaultPatchelf() string {
	return env.Str("SOFIX_PATCHELF", "patchelf")
}
