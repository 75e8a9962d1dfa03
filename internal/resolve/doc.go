// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resolve matches the needed sonames of an ELF file against a
// library index.
package resolve
