/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package units

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKindWeightStrictOrder(t *testing.T) {
	kinds := Kinds()
	seen := map[int]Kind{}
	for i := 1; i < len(kinds); i++ {
		if KindWeight(kinds[i-1]) >= KindWeight(kinds[i]) {
			t.Errorf("expected %q < %q, got weights %d and %d",
				kinds[i-1], kinds[i], KindWeight(kinds[i-1]), KindWeight(kinds[i]))
		}
	}
	for _, k := range kinds {
		w := KindWeight(k)
		if prev, ok := seen[w]; ok {
			t.Errorf("kinds %q and %q share weight %d", prev, k, w)
		}
		seen[w] = k
	}
}

func TestKindWeightUnknown(t *testing.T) {
	got := KindWeight("nonexistent-kind")
	if other := KindWeight(KindOther); got < other {
		t.Errorf("KindWeight(unknown) = %d, want >= %d", got, other)
	}
}

func TestOrderToolBeforeAgent(t *testing.T) {
	in := []Unit{
		{Kind: KindAgent, ID: "a1"},
		{Kind: KindTool, ID: "t1"},
	}
	want := []Unit{
		{Kind: KindTool, ID: "t1"},
		{Kind: KindAgent, ID: "a1"},
	}
	if diff := cmp.Diff(want, Order(in)); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderStableWithinKind(t *testing.T) {
	in := []Unit{
		{Kind: KindAgent, ID: "second"},
		{Kind: KindTool, ID: "x"},
		{Kind: KindAgent, ID: "third"},
		{Kind: KindAgent, ID: "first-by-weight-not-name"},
	}
	got := Order(in)

	var agents []string
	for _, u := range got {
		if u.Kind == KindAgent {
			agents = append(agents, u.ID)
		}
	}
	want := []string{"second", "third", "first-by-weight-not-name"}
	if diff := cmp.Diff(want, agents); diff != "" {
		t.Errorf("agents lost discovery order (-want +got):\n%s", diff)
	}
}

func TestOrderIdempotent(t *testing.T) {
	in := []Unit{
		{Kind: KindNetwork, ID: "n"},
		{Kind: KindMCPServer, ID: "m"},
		{Kind: "mystery", ID: "?"},
		{Kind: KindWorkflow, ID: "w"},
		{Kind: KindWorkflow, ID: "w2"},
	}
	once := Order(in)
	twice := Order(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Order is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestOrderEmpty(t *testing.T) {
	if got := Order(nil); len(got) != 0 {
		t.Errorf("Order(nil) = %v, want empty", got)
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	in := []Unit{
		{Kind: KindAgent, ID: "a"},
		{Kind: KindTool, ID: "t"},
	}
	orig := make([]Unit, len(in))
	copy(orig, in)
	Order(in)
	if diff := cmp.Diff(orig, in); diff != "" {
		t.Errorf("Order mutated its input (-orig +in):\n%s", diff)
	}
}
