/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package validate

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chainguard-dev/clog"
)

// maxErrorsPerKind caps how many diagnostics a single validator command
// contributes; model prompts degrade past that point anyway.
const maxErrorsPerKind = 50

// DefaultCommands maps each validation kind to the command a Node-based
// agent project conventionally answers it with.
func DefaultCommands() map[Kind][]string {
	return map[Kind][]string{
		KindTypes: {"npx", "tsc", "--noEmit"},
		KindLint:  {"npm", "run", "lint", "--if-present"},
		KindBuild: {"npm", "run", "build", "--if-present"},
		KindTests: {"npm", "test", "--if-present"},
	}
}

// CommandValidator validates a project by running one subprocess per kind
// in the project directory. A nonzero exit fails the kind; diagnostics are
// scraped from the combined output.
type CommandValidator struct {
	commands map[Kind][]string
}

// NewCommandValidator builds a validator from a kind-to-command table.
// Passing nil uses DefaultCommands.
func NewCommandValidator(commands map[Kind][]string) *CommandValidator {
	if commands == nil {
		commands = DefaultCommands()
	}
	return &CommandValidator{commands: commands}
}

// Validate implements Validator.
func (v *CommandValidator) Validate(ctx context.Context, dir string, kinds []Kind) (*Report, error) {
	log := clog.FromContext(ctx)
	report := &Report{Passed: make(map[Kind]bool, len(kinds))}

	for _, kind := range kinds {
		argv, ok := v.commands[kind]
		if !ok || len(argv) == 0 {
			// No command configured for this kind means the project
			// doesn't exercise it; treat as passing.
			report.Passed[kind] = true
			continue
		}

		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		if err == nil {
			report.Passed[kind] = true
			continue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if _, ok := err.(*exec.ExitError); !ok {
			return nil, fmt.Errorf("running %s validator: %w", kind, err)
		}

		report.Passed[kind] = false
		errs := scrapeErrors(kind, string(out))
		log.Infof("Validation kind %s failed with %d errors", kind, len(errs))
		report.Errors = append(report.Errors, errs...)
	}
	return report, nil
}

// scrapeErrors pulls diagnostics out of validator output. Every non-empty
// line is a candidate; "path:line: message" lines get file attribution.
func scrapeErrors(kind Kind, out string) []Error {
	var errs []Error
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ">") || strings.HasPrefix(line, "npm ") {
			continue
		}
		errs = append(errs, parseErrorLine(kind, line))
		if len(errs) == maxErrorsPerKind {
			break
		}
	}
	if len(errs) == 0 {
		errs = append(errs, Error{Message: fmt.Sprintf("%s validation failed with no diagnostics", kind), Kind: kind})
	}
	return errs
}
