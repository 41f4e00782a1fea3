/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package apply composes cloning, discovery, ordering, the per-unit merge
// step, and the validation fix loop into one pipeline, and condenses the
// whole run into a single Result. The pipeline never panics and never
// returns a Go error to the caller; every failure mode lands in the
// Result so callers have exactly one thing to inspect.
package apply
