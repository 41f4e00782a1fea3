/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"strings"
	"testing"

	"chainguard.dev/agentforge/templates/apply"
	"chainguard.dev/agentforge/templates/copier"
	"chainguard.dev/agentforge/templates/merge"
	"chainguard.dev/agentforge/templates/registry"
	"chainguard.dev/agentforge/templates/units"
	"chainguard.dev/agentforge/templates/validate"
)

func TestRender(t *testing.T) {
	result := &apply.Result{
		Success:    false,
		Applied:    true,
		BranchName: "feat/install-template-demo",
		Message:    "Template demo partially installed on branch feat/install-template-demo: 2 issues need manual follow-up",
		Errors: []string{
			"blocked: template requests deletion of legacy/old.js (integration/general)",
		},
		ValidationResults: &validate.Results{Valid: false, ErrorsFixed: 2, RemainingErrors: 1},
		StepResults: apply.StepResults{
			CloneSuccess:         true,
			DiscoverSuccess:      true,
			OrderSuccess:         true,
			PrepareBranchSuccess: true,
			CopySuccess:          true,
			MergeSuccess:         false,
			FilesCopied:          4,
			ConflictsSkipped:     1,
			ConflictsResolved:    1,
		},
		Units: []merge.UnitResult{
			{
				Unit:      units.Unit{Kind: units.KindTool, ID: "greet", File: "tools/greet.yaml"},
				Copied:    []copier.CopiedFile{{Destination: "tools/greet.yaml"}},
				CommitSHA: "0123456789abcdef0123456789abcdef01234567",
			},
			{
				Unit: units.Unit{Kind: units.KindAgent, ID: "helper", File: "agents/helper"},
				Err:  "edit step: model refused",
			},
		},
	}

	out := Render(result)

	for _, want := range []string{
		"## Template Install Report",
		"partially installed",
		"| Clone",
		"| Merge",
		"tool/greet",
		"0123456",
		"agent/helper",
		"model refused",
		"legacy/old.js",
		"1 validation errors remain after fixing 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTemplates(t *testing.T) {
	out := RenderTemplates([]registry.Descriptor{
		{
			Slug:   "support-triage",
			Title:  "Support Triage",
			Tags:   []string{"support", "triage"},
			Agents: []string{"triager"},
			Tools:  []string{"search", "label"},
		},
	})

	for _, want := range []string{"support-triage", "Support Triage", "| 3", "support, triage"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}

	if got := RenderTemplates(nil); got != "No templates available.\n" {
		t.Errorf("empty listing = %q", got)
	}
}
