/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gitops wraps the git primitives the merge pipeline needs: cloning
// a template repository at a ref, preparing install branches, and creating
// scoped checkpoint commits in the target project.
//
// Every operation other than Clone is a soft no-op when invoked outside a
// git repository, and Commit is a soft no-op when nothing is staged. The
// per-unit merge loop relies on this to stay resilient to partial or no-op
// units.
package gitops
