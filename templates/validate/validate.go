/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package validate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"chainguard.dev/agentforge/templates/merge"
	"github.com/chainguard-dev/clog"
)

// Kind names one validation dimension of a project.
type Kind string

const (
	KindTypes Kind = "types"
	KindLint  Kind = "lint"
	KindBuild Kind = "build"
	KindTests Kind = "tests"
)

// Kinds returns every validation kind, in the order they run.
func Kinds() []Kind {
	return []Kind{KindTypes, KindLint, KindBuild, KindTests}
}

// Error is one validation failure, with file/line where the validator
// could attribute it.
type Error struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

func (e Error) String() string {
	if e.File == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
	if e.Line == 0 {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.File, e.Message)
	}
	return fmt.Sprintf("[%s] %s:%d: %s", e.Kind, e.File, e.Line, e.Message)
}

// Report is the structured outcome of one validation pass.
type Report struct {
	Passed map[Kind]bool
	Errors []Error
}

// Valid reports whether every kind passed.
func (r *Report) Valid() bool {
	for _, ok := range r.Passed {
		if !ok {
			return false
		}
	}
	return len(r.Errors) == 0
}

// Validator checks a project directory against a set of validation kinds.
type Validator interface {
	Validate(ctx context.Context, dir string, kinds []Kind) (*Report, error)
}

// Results summarizes a whole fix-loop run.
type Results struct {
	Valid           bool `json:"valid"`
	ErrorsFixed     int  `json:"errorsFixed"`
	RemainingErrors int  `json:"remainingErrors"`
}

// Option configures a FixLoop.
type Option func(*FixLoop)

// WithMaxIterations bounds the number of edit/re-validate cycles.
func WithMaxIterations(n int) Option {
	return func(l *FixLoop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithKinds restricts which validation kinds run.
func WithKinds(kinds ...Kind) Option {
	return func(l *FixLoop) {
		l.kinds = kinds
	}
}

// FixLoop validates a project and invokes the edit capability on the
// error list until the project is valid or the iteration cap is reached.
type FixLoop struct {
	validator     Validator
	editor        merge.EditCapability
	maxIterations int
	kinds         []Kind
}

// NewFixLoop constructs a fix loop. A nil editor reduces the loop to a
// single validation pass.
func NewFixLoop(validator Validator, editor merge.EditCapability, opts ...Option) (*FixLoop, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator cannot be nil")
	}
	l := &FixLoop{
		validator:     validator,
		editor:        editor,
		maxIterations: 5,
		kinds:         Kinds(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes the loop. The returned error is reserved for the validator
// or editor itself breaking; a project that simply fails validation is a
// normal result with Valid=false.
func (l *FixLoop) Run(ctx context.Context, dir string) (*Results, error) {
	log := clog.FromContext(ctx)

	report, err := l.validator.Validate(ctx, dir, l.kinds)
	if err != nil {
		return nil, fmt.Errorf("validating project: %w", err)
	}
	initial := len(report.Errors)
	if report.Valid() {
		log.Infof("Validation passed on first try")
		return &Results{Valid: true}, nil
	}

	for i := 1; i <= l.maxIterations; i++ {
		if l.editor == nil {
			break
		}
		log.Infof("Validation found %d errors, fix iteration %d/%d", len(report.Errors), i, l.maxIterations)

		// A fix may need to touch files beyond the ones named in the
		// diagnostics, so the edit is scoped to the whole project. The
		// install branch isolates whatever it writes.
		insn := merge.Instruction{
			Prompt:       fixPrompt(report.Errors),
			WorkDir:      dir,
			AllowedPaths: []string{"."},
		}
		if _, err := l.editor.Edit(ctx, insn); err != nil {
			return nil, fmt.Errorf("fix iteration %d: %w", i, err)
		}

		report, err = l.validator.Validate(ctx, dir, l.kinds)
		if err != nil {
			return nil, fmt.Errorf("re-validating project: %w", err)
		}
		if report.Valid() {
			log.Infof("Validation passed after %d fix iterations", i)
			return &Results{Valid: true, ErrorsFixed: initial}, nil
		}
	}

	remaining := len(report.Errors)
	fixed := initial - remaining
	if fixed < 0 {
		fixed = 0
	}
	log.Warnf("Validation still failing after %d iterations: %d errors remain", l.maxIterations, remaining)
	return &Results{Valid: false, ErrorsFixed: fixed, RemainingErrors: remaining}, nil
}

func fixPrompt(errs []Error) string {
	var sb strings.Builder
	sb.WriteString("The project fails validation. Fix the following errors without changing the project's behavior or removing functionality:\n")
	for _, e := range errs {
		sb.WriteString("- ")
		sb.WriteString(e.String())
		sb.WriteString("\n")
	}
	sb.WriteString("\nOnly edit files needed to fix these errors.")
	return sb.String()
}

// parseErrorLine extracts file/line attribution from a "path:line: message"
// diagnostic. Lines that do not match come back message-only.
func parseErrorLine(kind Kind, line string) Error {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) == 3 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
			return Error{
				File:    strings.TrimSpace(parts[0]),
				Line:    n,
				Message: strings.TrimSpace(parts[2]),
				Kind:    kind,
			}
		}
	}
	return Error{Message: strings.TrimSpace(line), Kind: kind}
}
