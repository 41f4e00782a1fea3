/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package merge applies an ordered unit plan into a target project on a
// dedicated git branch, with a checkpoint commit after every unit.
//
// The step walks Idle -> BranchPrepared -> (per unit: Applying ->
// Committed) -> Done. Unit failures are independent: one failing unit is
// recorded and the loop continues with the next, so a partial install still
// lands everything that can land. Checkpoint commits are staged to only the
// unit's known files, never a blanket add-all, and encode the unit identity
// plus the template's source commit for traceability.
//
// Conflicts the copier tiers as warn are handed to an external model-driven
// EditCapability scoped to exactly the unit's files; block-tier conflicts
// are never given to it for application and always survive into the final
// report.
package merge
