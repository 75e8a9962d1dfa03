// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sofix

import "errors"

var (
	// ErrNoTargets is returned if no target paths are given.
	ErrNoTargets = errors.New("no target paths given")

	// ErrFixedPointNotReached is returned if rewrites still happen when the
	// pass limit is hit. With a static library index this signals an
	// environment anomaly, like a patch tool that does not rewrite
	// idempotently.
	ErrFixedPointNotReached = errors.New("fixed point not reached within pass limit")
)
