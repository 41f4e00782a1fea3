/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chainguard.dev/agentforge/templates/copier"
	"chainguard.dev/agentforge/templates/units"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type fakeEditor struct {
	instructions []Instruction
	failWhen     func(Instruction) bool
}

func (f *fakeEditor) Edit(_ context.Context, insn Instruction) (*Outcome, error) {
	f.instructions = append(f.instructions, insn)
	if f.failWhen != nil && f.failWhen(insn) {
		return nil, errors.New("model refused")
	}
	return &Outcome{Summary: "reconciled by model"}, nil
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func initTargetRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	writeFile(t, dir, "README.md", "# target\n")
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir
}

func newPlan(templateDir string, us ...units.Unit) *Plan {
	return &Plan{
		Slug:        "support-triage",
		CommitSHA:   "0123456789abcdef0123456789abcdef01234567",
		TemplateDir: templateDir,
		Units:       us,
	}
}

func TestRunAppliesUnitsWithCheckpoints(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "tools/search.yaml", "name: search")
	writeFile(t, templateDir, "agents/triager/agent.yaml", "name: triager")

	step, err := NewStep(target, nil)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	plan := newPlan(templateDir,
		units.Unit{Kind: units.KindTool, ID: "search", File: "tools/search.yaml"},
		units.Unit{Kind: units.KindAgent, ID: "triager", File: "agents/triager"},
	)
	result, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.BranchName != "feat/install-template-support-triage" || !result.BranchCreated {
		t.Fatalf("branch = %s created=%v", result.BranchName, result.BranchCreated)
	}
	if result.FailedUnits() != 0 {
		t.Fatalf("failed units: %+v", result.Units)
	}

	for _, ur := range result.Units {
		if ur.CommitSHA == "" {
			t.Errorf("unit %s has no checkpoint commit", ur.Unit.Ref())
		}
	}

	repo, err := git.PlainOpen(target)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("CommitObject: %v", err)
	}
	if !strings.Contains(commit.Message, "agent/triager") || !strings.Contains(commit.Message, "support-triage@0123456") {
		t.Fatalf("commit message = %q", commit.Message)
	}
}

func TestRunPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "tools/one.yaml", "name: one")
	writeFile(t, templateDir, "tools/two.yaml", "name: two")
	writeFile(t, templateDir, "tools/three.yaml", "name: three")

	// Unit two's destination already exists with other content, producing
	// a warn conflict that routes to the (failing) editor.
	writeFile(t, target, "tools/two.yaml", "name: not-two")

	editor := &fakeEditor{failWhen: func(insn Instruction) bool {
		return strings.Contains(insn.Prompt, "tool/two")
	}}
	step, err := NewStep(target, editor)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	plan := newPlan(templateDir,
		units.Unit{Kind: units.KindTool, ID: "one", File: "tools/one.yaml"},
		units.Unit{Kind: units.KindTool, ID: "two", File: "tools/two.yaml"},
		units.Unit{Kind: units.KindTool, ID: "three", File: "tools/three.yaml"},
	)
	result, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.FailedUnits() != 1 {
		t.Fatalf("failed units = %d, want 1", result.FailedUnits())
	}

	copied := 0
	for _, ur := range result.Units {
		switch ur.Unit.ID {
		case "one", "three":
			if ur.Failed() {
				t.Errorf("unit %s failed: %s", ur.Unit.ID, ur.Err)
			}
			if len(ur.Copied) != 1 || ur.CommitSHA == "" {
				t.Errorf("unit %s = %d copied, commit %q", ur.Unit.ID, len(ur.Copied), ur.CommitSHA)
			}
			copied += len(ur.Copied)
		case "two":
			if !ur.Failed() {
				t.Error("unit two should have failed")
			}
		}
	}
	if copied != 2 {
		t.Fatalf("copied = %d, want files from units one and three only", copied)
	}
}

func TestRunBlockConflictsNeverVanish(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "docs/guide.md", "guide")
	writeFile(t, target, "legacy/old.js", "legacy code")

	editor := &fakeEditor{}
	step, err := NewStep(target, editor)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	plan := newPlan(templateDir, units.Unit{Kind: units.KindIntegration, ID: "general", File: "."})
	plan.Removals = []string{"legacy/old.js"}

	result, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var blocks []copier.Conflict
	for _, ur := range result.Units {
		for _, c := range ur.Conflicts {
			if c.Severity == copier.SeverityBlock {
				blocks = append(blocks, c)
			}
		}
	}
	if len(blocks) != 1 || !strings.Contains(blocks[0].Issue, "legacy/old.js") {
		t.Fatalf("block conflicts = %+v", blocks)
	}
	if _, err := os.Stat(filepath.Join(target, "legacy/old.js")); err != nil {
		t.Fatal("blocked removal must not be applied")
	}
}

func TestRunRemovalBoundariesReachEditor(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "README.md", "# template\n")
	writeFile(t, target, "legacy/old.js", "legacy code")

	editor := &fakeEditor{}
	step, err := NewStep(target, editor)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	plan := newPlan(templateDir, units.Unit{Kind: units.KindIntegration, ID: "general", File: "."})
	plan.Removals = []string{"legacy/old.js"}

	if _, err := step.Run(ctx, plan); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The README overwrite is warn-tier, so the editor runs; the blocked
	// removal must be named in the prompt as a boundary to refuse.
	if len(editor.instructions) != 1 {
		t.Fatalf("editor invoked %d times, want 1", len(editor.instructions))
	}
	prompt := editor.instructions[0].Prompt
	if !strings.Contains(prompt, "legacy/old.js") {
		t.Errorf("prompt does not name the blocked removal:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Do NOT perform them") {
		t.Errorf("prompt lacks the refusal boundary:\n%s", prompt)
	}
}

func TestRunEditorScopedToUnitFiles(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "workflows/esc.yaml", "steps: [notify]")
	writeFile(t, target, "workflows/esc.yaml", "steps: [page]")

	editor := &fakeEditor{}
	step, err := NewStep(target, editor)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}

	plan := newPlan(templateDir, units.Unit{Kind: units.KindWorkflow, ID: "esc", File: "workflows/esc.yaml"})
	result, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(editor.instructions) != 1 {
		t.Fatalf("editor invoked %d times, want 1", len(editor.instructions))
	}
	insn := editor.instructions[0]
	if insn.WorkDir != target {
		t.Errorf("WorkDir = %q", insn.WorkDir)
	}
	for _, p := range insn.AllowedPaths {
		if !strings.HasPrefix(p, "workflows/") {
			t.Errorf("allowed path %q escapes the unit's file set", p)
		}
	}

	if len(result.Units[0].Resolutions) != 1 {
		t.Fatalf("resolutions = %+v", result.Units[0].Resolutions)
	}
	if result.Units[0].Resolutions[0].Resolution != "reconciled by model" {
		t.Fatalf("resolution = %+v", result.Units[0].Resolutions[0])
	}
}

func TestRunSwitchesToExistingBranch(t *testing.T) {
	ctx := context.Background()
	target := initTargetRepo(t)
	templateDir := t.TempDir()
	writeFile(t, templateDir, "tools/a.yaml", "name: a")

	step, err := NewStep(target, nil)
	if err != nil {
		t.Fatalf("NewStep: %v", err)
	}
	plan := newPlan(templateDir, units.Unit{Kind: units.KindTool, ID: "a", File: "tools/a.yaml"})

	first, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if !first.BranchCreated {
		t.Fatal("first run should create the branch")
	}

	second, err := step.Run(ctx, plan)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.BranchCreated {
		t.Fatal("second run must switch, not recreate")
	}
	if second.BranchName != first.BranchName {
		t.Fatalf("branch changed: %s -> %s", first.BranchName, second.BranchName)
	}
	// Idempotent re-run: content identical, so nothing copied, nothing
	// committed.
	if len(second.Units[0].Copied) != 0 || second.Units[0].Skipped != 1 {
		t.Fatalf("re-run unit = %+v", second.Units[0])
	}
	if second.Units[0].CommitSHA != "" {
		t.Fatal("re-run must not create a checkpoint commit")
	}
}
