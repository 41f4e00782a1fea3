/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package copier places a template unit's files into the target project and
// classifies everything that cannot be placed cleanly.
//
// The default path is auto-approved: a file whose destination does not
// exist is copied without confirmation, because purely additive changes
// never require one. Byte-identical destinations are skipped so re-running
// a merge is idempotent. Everything else goes through a single pure
// classifier that assigns one of three severities:
//
//   - safe: appendable constructs (pure file appends, new dependency
//     entries, new script entries under the unit's namespace prefix) are
//     auto-merged with no conflict recorded.
//   - warn: body overwrites, dependency upgrades, and colliding script
//     entries are recorded as conflicts and routed to the model-driven
//     merge step; they do not block the pipeline.
//   - block: destructive or high-risk changes (file removal, dependency
//     downgrades, compiler/target settings, CI secret configuration) are
//     recorded and never auto-applied or silently resolved.
//
// The tiering bounds the blast radius of unattended automation while
// letting routine template installs proceed with zero prompts.
package copier
