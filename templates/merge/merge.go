/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/agentforge/templates/copier"
	"chainguard.dev/agentforge/templates/gitops"
	"chainguard.dev/agentforge/templates/units"
	"github.com/chainguard-dev/clog"
	"github.com/oklog/ulid/v2"
)

// Instruction scopes one model-driven edit: a natural-language prompt, the
// directory to work in, and the only paths the edit may touch. An allowed
// entry that names a directory covers everything beneath it; "." grants
// the whole working directory. An empty allowed set permits no writes.
type Instruction struct {
	Prompt       string
	WorkDir      string
	AllowedPaths []string
}

// Outcome reports a completed edit.
type Outcome struct {
	Summary string
}

// EditCapability is the external model-driven editing collaborator. It
// performs its own file reads and writes and must not be given authority
// beyond the instruction's allowed paths.
type EditCapability interface {
	Edit(ctx context.Context, insn Instruction) (*Outcome, error)
}

// Plan is what a merge run is about to do: the ordered unit list plus
// enough provenance to make every step reproducible.
type Plan struct {
	Slug        string
	CommitSHA   string
	TemplateDir string
	Units       []units.Unit
	Removals    []string
}

// Resolution records how a conflict was handled.
type Resolution struct {
	Unit       copier.UnitRef `json:"unit"`
	Issue      string         `json:"issue"`
	Resolution string         `json:"resolution"`
}

// UnitResult is the outcome of applying a single unit.
type UnitResult struct {
	Unit        units.Unit
	Copied      []copier.CopiedFile
	Merged      []string
	Skipped     int
	Conflicts   []copier.Conflict
	Resolutions []Resolution
	CommitSHA   string
	Err         string
}

// Failed reports whether this unit's application failed.
func (r *UnitResult) Failed() bool {
	return r.Err != ""
}

// Result is the outcome of the whole merge step.
type Result struct {
	BranchName    string
	BranchCreated bool
	Units         []UnitResult
}

// FailedUnits counts units whose application failed.
func (r *Result) FailedUnits() int {
	n := 0
	for i := range r.Units {
		if r.Units[i].Failed() {
			n++
		}
	}
	return n
}

// Option configures a Step.
type Option func(*Step)

// WithIdentity sets the commit author identity.
func WithIdentity(identity string) Option {
	return func(s *Step) {
		s.identity = identity
	}
}

// WithBranchSuffix overrides the generator for uniquified branch-name
// fallbacks. Tests use this for determinism.
func WithBranchSuffix(fn func() string) Option {
	return func(s *Step) {
		s.branchSuffix = fn
	}
}

// Step applies a Plan into a target project.
type Step struct {
	targetDir    string
	editor       EditCapability
	identity     string
	branchSuffix func() string
}

// NewStep constructs a merge step. A nil editor disables model-driven
// conflict resolution; warn conflicts then stay unresolved in the result.
func NewStep(targetDir string, editor EditCapability, opts ...Option) (*Step, error) {
	if targetDir == "" {
		return nil, errors.New("target directory cannot be empty")
	}
	s := &Step{
		targetDir: targetDir,
		editor:    editor,
		identity:  "agentforge",
		branchSuffix: func() string {
			return strings.ToLower(ulid.Make().String())
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BranchName returns the deterministic install branch for a template slug.
func BranchName(slug string) string {
	return "feat/install-template-" + slug
}

// Run executes the state machine. The returned error is reserved for fatal
// pre-unit failures (unpreparable branch); per-unit failures are recorded
// in the result and never abort the remaining units.
func (s *Step) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if plan == nil || plan.Slug == "" {
		return nil, errors.New("plan must have a slug")
	}
	log := clog.FromContext(ctx)

	branch, created, err := s.prepareBranch(ctx, plan.Slug)
	if err != nil {
		return nil, err
	}
	log.Infof("Branch prepared: %s (created=%v)", branch, created)

	cp, err := copier.New(plan.TemplateDir, s.targetDir)
	if err != nil {
		return nil, err
	}

	result := &Result{BranchName: branch, BranchCreated: created}
	for _, u := range plan.Units {
		ur := s.applyUnit(ctx, cp, plan, u)
		result.Units = append(result.Units, ur)
		if ur.Failed() {
			log.Warnf("Unit %s failed: %s", u.Ref(), ur.Err)
		}
	}

	log.Infof("Merge done: %d units, %d failed", len(result.Units), result.FailedUnits())
	return result, nil
}

// prepareBranch creates or switches to the install branch. When the
// deterministic name cannot be prepared, a uniquified fallback is tried
// once; existing branch history is never rewritten either way.
func (s *Step) prepareBranch(ctx context.Context, slug string) (string, bool, error) {
	name := BranchName(slug)
	branch, created, err := gitops.EnsureBranch(ctx, s.targetDir, name)
	if err == nil {
		return branch, created, nil
	}

	fallback := name + "-" + s.branchSuffix()
	clog.FromContext(ctx).Warnf("Preparing branch %s failed (%v), falling back to %s", name, err, fallback)
	branch, created, err = gitops.EnsureBranch(ctx, s.targetDir, fallback)
	if err != nil {
		return "", false, fmt.Errorf("preparing branch: %w", err)
	}
	return branch, created, nil
}

func (s *Step) applyUnit(ctx context.Context, cp *copier.Copier, plan *Plan, u units.Unit) UnitResult {
	ur := UnitResult{Unit: u}
	ref := copier.UnitRef{Kind: u.Kind, ID: u.ID}

	outcome, err := cp.ApplyUnit(ctx, u)
	if err != nil {
		ur.Err = fmt.Sprintf("copying files: %v", err)
		return ur
	}
	ur.Copied = outcome.Copied
	ur.Merged = outcome.Merged
	ur.Skipped = outcome.Skipped
	ur.Conflicts = outcome.Conflicts

	// Template-requested deletions ride with the integration unit and are
	// always block-tier.
	if u.Kind == units.KindIntegration {
		ur.Conflicts = append(ur.Conflicts, cp.RemovalConflicts(ref, plan.Removals)...)
	}

	if warn := filterConflicts(ur.Conflicts, copier.SeverityWarn); len(warn) > 0 && s.editor != nil {
		block := filterConflicts(ur.Conflicts, copier.SeverityBlock)
		resolutions, err := s.resolveConflicts(ctx, plan, u, outcome.TouchedPaths(), warn, block)
		ur.Resolutions = resolutions
		if err != nil {
			ur.Err = fmt.Sprintf("edit step: %v", err)
			// Fall through: a checkpoint commit still captures whatever
			// the unit managed to place before the edit failed.
		}
	}

	paths := outcome.TouchedPaths()
	if len(paths) > 0 {
		if err := gitops.AddPaths(ctx, s.targetDir, paths); err != nil {
			ur.Err = fmt.Sprintf("staging unit files: %v", err)
			return ur
		}
	}

	message := fmt.Sprintf("Install %s from template %s@%s", u.Ref(), plan.Slug, shortSHA(plan.CommitSHA))
	sha, err := gitops.Commit(ctx, s.targetDir, message, s.identity)
	if err != nil {
		ur.Err = fmt.Sprintf("checkpoint commit: %v", err)
		return ur
	}
	ur.CommitSHA = sha
	return ur
}

// resolveConflicts invokes the edit capability once per unit, scoped to the
// unit's own files. Block-tier conflicts are named in the prompt only as
// boundaries the edit must refuse to cross; they are never in scope for
// application.
func (s *Step) resolveConflicts(ctx context.Context, plan *Plan, u units.Unit, paths []string, warn, block []copier.Conflict) ([]Resolution, error) {
	insn := Instruction{
		Prompt:       conflictPrompt(plan, u, warn, block),
		WorkDir:      s.targetDir,
		AllowedPaths: paths,
	}

	edit, err := s.editor.Edit(ctx, insn)
	if err != nil {
		return nil, err
	}

	resolutions := make([]Resolution, 0, len(warn))
	for _, c := range warn {
		resolutions = append(resolutions, Resolution{
			Unit:       c.Unit,
			Issue:      c.Issue,
			Resolution: edit.Summary,
		})
	}
	return resolutions, nil
}

func conflictPrompt(plan *Plan, u units.Unit, warn, block []copier.Conflict) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are merging the %s unit of template %q into an existing project.\n", u.Ref(), plan.Slug)
	fmt.Fprintf(&sb, "The template's version of each file lives under %s; reconcile the following conflicts in the project, keeping the project working:\n", plan.TemplateDir)
	for _, c := range warn {
		fmt.Fprintf(&sb, "- %s: %s\n", c.TargetFile, c.Issue)
	}
	if len(block) > 0 {
		sb.WriteString("\nThe following changes are blocked. Do NOT perform them under any circumstances; leave these files as they are:\n")
		for _, c := range block {
			fmt.Fprintf(&sb, "- %s: %s\n", c.TargetFile, c.Issue)
		}
	}
	sb.WriteString("\nOnly touch the files listed above. Do not modify anything else in the project.")
	return sb.String()
}

func filterConflicts(conflicts []copier.Conflict, sev copier.Severity) []copier.Conflict {
	var out []copier.Conflict
	for _, c := range conflicts {
		if c.Severity == sev {
			out = append(out, c)
		}
	}
	return out
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
