// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sofix repairs the dynamic-linking metadata of ELF files so they
// resolve their shared libraries from a given set of directories instead of
// the global search path.
//
// It repeatedly resolves and patches all target files until a pass performs
// no rewrites. Patching a library that is itself a target changes that
// library's own metadata, so every patched file is re-inspected before the
// next pass.
package sofix
