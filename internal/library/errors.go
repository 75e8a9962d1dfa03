// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package library

import "errors"

// ErrSearchPathUnavailable is returned if a library search directory cannot
// be read. Resolution cannot be attempted soundly without it, so this error
// is fatal for a run.
var ErrSearchPathUnavailable = errors.New("library search path unavailable")
