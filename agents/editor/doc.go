/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package editor implements the model-driven edit capability on Claude.
//
// An Edit call runs a bounded tool-use conversation: the model reads and
// writes files in the instruction's working directory through a statically
// declared tool registry, and signals completion with a finish tool. Writes
// are confined to the instruction's allowed paths; the model is never
// given authority beyond them.
package editor
