/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package apply

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"chainguard.dev/agentforge/templates/copier"
	"chainguard.dev/agentforge/templates/discovery"
	"chainguard.dev/agentforge/templates/gitops"
	"chainguard.dev/agentforge/templates/merge"
	"chainguard.dev/agentforge/templates/registry"
	"chainguard.dev/agentforge/templates/units"
	"chainguard.dev/agentforge/templates/validate"
	"github.com/chainguard-dev/clog"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// Request describes one template installation.
type Request struct {
	// Repo is a git URL or local path for the template repository.
	Repo string
	// Ref is the tag, branch, or commit to install from. Defaults to main.
	Ref string
	// Slug names the template in the registry. Inferred from the repo
	// basename when empty.
	Slug string
	// TargetPath is the project to install into. Defaults to the current
	// directory.
	TargetPath string
}

// StepResults records per-stage success plus the running counters the
// stages accumulate.
type StepResults struct {
	CloneSuccess         bool `json:"cloneSuccess"`
	DiscoverSuccess      bool `json:"discoverSuccess"`
	OrderSuccess         bool `json:"orderSuccess"`
	PrepareBranchSuccess bool `json:"prepareBranchSuccess"`
	CopySuccess          bool `json:"copySuccess"`
	MergeSuccess         bool `json:"mergeSuccess"`
	ValidationSuccess    bool `json:"validationSuccess"`
	FilesCopied          int  `json:"filesCopied"`
	ConflictsSkipped     int  `json:"conflictsSkipped"`
	ConflictsResolved    int  `json:"conflictsResolved"`
}

// Result is the sole output of a pipeline run.
type Result struct {
	Success           bool               `json:"success"`
	Applied           bool               `json:"applied"`
	BranchName        string             `json:"branchName,omitempty"`
	Message           string             `json:"message"`
	ValidationResults *validate.Results  `json:"validationResults,omitempty"`
	Error             string             `json:"error,omitempty"`
	Errors            []string           `json:"errors,omitempty"`
	StepResults       StepResults        `json:"stepResults"`
	Units             []merge.UnitResult `json:"-"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry supplies the template registry client. Without one,
// discovery relies solely on the template's own manifest.
func WithRegistry(client *registry.Client) Option {
	return func(p *Pipeline) {
		p.registry = client
	}
}

// WithEditor supplies the model-driven edit capability used for warn-tier
// conflicts and the validation fix loop.
func WithEditor(editor merge.EditCapability) Option {
	return func(p *Pipeline) {
		p.editor = editor
	}
}

// WithValidator enables the post-merge validation fix loop.
func WithValidator(v validate.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithMaxFixIterations bounds the validation fix loop.
func WithMaxFixIterations(n int) Option {
	return func(p *Pipeline) {
		p.maxFixIterations = n
	}
}

// Pipeline installs templates into target projects. It is not safe for
// concurrent runs against the same target path; callers serialize.
type Pipeline struct {
	registry         *registry.Client
	editor           merge.EditCapability
	validator        validate.Validator
	maxFixIterations int
}

// NewPipeline constructs a pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{maxFixIterations: 5}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply runs the pipeline end to end. It never returns an error; fatal
// failures come back as a Result with Success=false and Error set. The
// temporary clone directory is removed regardless of outcome.
func (p *Pipeline) Apply(ctx context.Context, req Request) *Result {
	runID := ulid.Make().String()
	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("run", runID))
	log := clog.FromContext(ctx)

	slug := req.Slug
	if slug == "" {
		slug = inferSlug(req.Repo)
	}
	ref := req.Ref
	if ref == "" {
		ref = "main"
	}
	target := req.TargetPath
	if target == "" {
		target = "."
	}

	result := &Result{}
	applyRuns.Inc()
	log.Infof("Applying template %s from %s@%s into %s", slug, req.Repo, ref, target)

	templateDir, err := os.MkdirTemp("", "agentforge-template-*")
	if err != nil {
		return fatal(result, fmt.Errorf("creating temp directory: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(templateDir); err != nil {
			log.Warnf("Cleaning up %s: %v", templateDir, err)
		}
	}()

	// The clone and the registry lookup are independent; overlap them.
	var sha string
	var desc *registry.Descriptor
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		sha, err = gitops.Clone(egctx, req.Repo, ref, templateDir)
		if err != nil {
			return fmt.Errorf("cloning %s@%s: %w", req.Repo, ref, err)
		}
		return nil
	})
	var lookupErr error
	if p.registry != nil {
		eg.Go(func() error {
			d, err := p.registry.Lookup(egctx, slug)
			if err != nil {
				// An unknown slug is terminal; an unreachable registry is
				// not, as long as the template carries its own manifest.
				if registry.IsNotFound(err) {
					return err
				}
				lookupErr = err
				return nil
			}
			desc = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fatal(result, err)
	}
	if lookupErr != nil {
		log.Warnf("Registry lookup failed, relying on the template manifest: %v", lookupErr)
	}
	result.StepResults.CloneSuccess = true

	manifest, err := discovery.Discover(ctx, templateDir, slug, ref, desc)
	if err != nil {
		return fatal(result, fmt.Errorf("discovering units: %w", err))
	}
	result.StepResults.DiscoverSuccess = true

	ordered := units.Order(manifest.Units)
	result.StepResults.OrderSuccess = true
	log.Infof("Discovered %d units", len(ordered))

	step, err := merge.NewStep(target, p.editor)
	if err != nil {
		return fatal(result, fmt.Errorf("preparing merge step: %w", err))
	}
	plan := &merge.Plan{
		Slug:        slug,
		CommitSHA:   sha,
		TemplateDir: templateDir,
		Units:       ordered,
		Removals:    manifest.Removals,
	}
	mergeResult, err := step.Run(ctx, plan)
	if err != nil {
		return fatal(result, fmt.Errorf("merging units: %w", err))
	}
	result.BranchName = mergeResult.BranchName
	result.StepResults.PrepareBranchSuccess = true
	result.StepResults.CopySuccess = true
	result.Units = mergeResult.Units
	p.accumulate(result, mergeResult)

	if p.validator != nil {
		loop, err := validate.NewFixLoop(p.validator, p.editor, validate.WithMaxIterations(p.maxFixIterations))
		if err != nil {
			return fatal(result, fmt.Errorf("preparing validation: %w", err))
		}
		vr, err := loop.Run(ctx, target)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("validation: %v", err))
		} else {
			result.ValidationResults = vr
			result.StepResults.ValidationSuccess = vr.Valid
		}
	} else {
		result.StepResults.ValidationSuccess = true
	}

	p.finalize(result, slug)
	log.Infof("Apply finished: success=%v applied=%v %s", result.Success, result.Applied, result.Message)
	return result
}

// accumulate folds per-unit merge outcomes into the step results and the
// errors list.
func (p *Pipeline) accumulate(result *Result, mr *merge.Result) {
	allUnitsOK := true
	anyApplied := false
	for i := range mr.Units {
		ur := &mr.Units[i]
		result.StepResults.FilesCopied += len(ur.Copied)
		result.StepResults.ConflictsResolved += len(ur.Resolutions)
		filesCopied.Add(float64(len(ur.Copied)))
		warnSeen := 0
		for _, c := range ur.Conflicts {
			conflicts.WithLabelValues(string(c.Severity)).Inc()
			switch c.Severity {
			case copier.SeverityBlock:
				result.StepResults.ConflictsSkipped++
				result.Errors = append(result.Errors, fmt.Sprintf("blocked: %s (%s)", c.Issue, ur.Unit.Ref()))
			case copier.SeverityWarn:
				// A warn conflict with no matching resolution was never
				// handed to an editor; it needs manual follow-up.
				warnSeen++
				if warnSeen > len(ur.Resolutions) {
					allUnitsOK = false
					result.Errors = append(result.Errors, fmt.Sprintf("unresolved: %s: %s (%s)", c.TargetFile, c.Issue, ur.Unit.Ref()))
				}
			}
		}
		if ur.Failed() {
			allUnitsOK = false
			result.Errors = append(result.Errors, fmt.Sprintf("unit %s: %s", ur.Unit.Ref(), ur.Err))
			continue
		}
		if ur.CommitSHA != "" || len(ur.Copied) > 0 || len(ur.Merged) > 0 {
			anyApplied = true
		}
	}
	result.StepResults.MergeSuccess = allUnitsOK
	result.Applied = anyApplied
}

// finalize is the only place the overall verdict is decided.
func (p *Pipeline) finalize(result *Result, slug string) {
	sr := result.StepResults
	result.Success = sr.CloneSuccess && sr.DiscoverSuccess && sr.OrderSuccess &&
		sr.PrepareBranchSuccess && sr.CopySuccess && sr.MergeSuccess &&
		sr.ValidationSuccess && sr.ConflictsSkipped == 0

	switch {
	case result.Success:
		result.Message = fmt.Sprintf("Template %s installed on branch %s (%d files copied)", slug, result.BranchName, sr.FilesCopied)
		applyOutcomes.WithLabelValues("success").Inc()
	case result.Applied:
		result.Message = fmt.Sprintf("Template %s partially installed on branch %s: %d issues need manual follow-up", slug, result.BranchName, len(result.Errors)+remaining(result))
		applyOutcomes.WithLabelValues("partial").Inc()
	default:
		result.Message = fmt.Sprintf("Template %s was not applied", slug)
		applyOutcomes.WithLabelValues("failure").Inc()
	}
}

func remaining(result *Result) int {
	if result.ValidationResults == nil {
		return 0
	}
	return result.ValidationResults.RemainingErrors
}

func fatal(result *Result, err error) *Result {
	result.Success = false
	result.Applied = false
	result.Error = err.Error()
	result.Message = fmt.Sprintf("Pipeline aborted: %v", err)
	applyOutcomes.WithLabelValues("fatal").Inc()
	return result
}

// inferSlug derives a template slug from the repo's basename when the
// caller did not name one.
func inferSlug(repo string) string {
	base := path.Base(strings.TrimSuffix(strings.TrimSuffix(repo, "/"), ".git"))
	return strings.TrimPrefix(base, "template-")
}
