/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package units

import (
	"fmt"
	"sort"
)

// Kind identifies the category of a template unit.
type Kind string

const (
	KindMCPServer   Kind = "mcp-server"
	KindTool        Kind = "tool"
	KindWorkflow    Kind = "workflow"
	KindAgent       Kind = "agent"
	KindIntegration Kind = "integration"
	KindNetwork     Kind = "network"
	KindOther       Kind = "other"
)

// kindOrder is the canonical application order. Lower-level capabilities
// come first so that higher-level consumers can reference them.
var kindOrder = []Kind{
	KindMCPServer,
	KindTool,
	KindWorkflow,
	KindAgent,
	KindIntegration,
	KindNetwork,
	KindOther,
}

// Kinds returns the defined kinds in canonical application order.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// KindWeight returns the scheduling weight of a kind: its index in the
// canonical order. Unrecognized kinds get a weight equal to the number of
// defined kinds so they sort after everything defined, never erroring.
func KindWeight(k Kind) int {
	for i, kk := range kindOrder {
		if kk == k {
			return i
		}
	}
	return len(kindOrder)
}

// Unit is a single logical unit discovered in a template. Identity is
// (Kind, ID); File is the unit's primary source path relative to the
// template root. Units are immutable once discovered.
type Unit struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	File string `json:"file"`
}

// Ref returns the unit's identity as kind/id, for log and commit messages.
func (u Unit) Ref() string {
	return fmt.Sprintf("%s/%s", u.Kind, u.ID)
}

// Order returns a new slice with the units sorted by kind weight. The sort
// is stable: units of equal kind keep their original (discovery) relative
// order, which makes Order idempotent.
func Order(us []Unit) []Unit {
	out := make([]Unit, len(us))
	copy(out, us)
	sort.SliceStable(out, func(i, j int) bool {
		return KindWeight(out[i].Kind) < KindWeight(out[j].Kind)
	})
	return out
}
