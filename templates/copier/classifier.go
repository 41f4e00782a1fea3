/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package copier

// Severity tiers a conflicting change by how much automation it tolerates.
type Severity string

const (
	// SeveritySafe changes are auto-merged; no conflict is recorded.
	SeveritySafe Severity = "safe"
	// SeverityWarn changes are recorded and routed to the model-driven
	// merge step without blocking the pipeline.
	SeverityWarn Severity = "warn"
	// SeverityBlock changes are never auto-applied and never silently
	// resolved; they always surface in the final report.
	SeverityBlock Severity = "block"
)

// ChangeKind names the nature of a proposed modification to an existing
// destination. Detection maps file contents to a kind; Classify maps the
// kind to a severity. Keeping the two apart keeps the policy in one table.
type ChangeKind string

const (
	// ChangeAppend extends a file whose current content is a prefix of
	// the template's content.
	ChangeAppend ChangeKind = "append"
	// ChangeDependencyAdd introduces a dependency the target lacks.
	ChangeDependencyAdd ChangeKind = "dependency-add"
	// ChangeScriptNamespaced adds a script entry under the unit's
	// namespace prefix.
	ChangeScriptNamespaced ChangeKind = "script-namespaced"

	// ChangeOverwrite replaces an existing file body.
	ChangeOverwrite ChangeKind = "overwrite"
	// ChangeDependencyUpgrade raises an existing dependency's range.
	ChangeDependencyUpgrade ChangeKind = "dependency-upgrade"
	// ChangeScriptCollision renames or redefines an existing script entry.
	ChangeScriptCollision ChangeKind = "script-collision"

	// ChangeRemove deletes a file from the target.
	ChangeRemove ChangeKind = "remove"
	// ChangeDependencyDowngrade lowers an existing dependency's range.
	ChangeDependencyDowngrade ChangeKind = "dependency-downgrade"
	// ChangeCompilerSettings alters compiler or build-target settings.
	ChangeCompilerSettings ChangeKind = "compiler-settings"
	// ChangeCISecrets touches CI/CD configuration that references secrets.
	ChangeCISecrets ChangeKind = "ci-secrets"
)

// Change is one proposed modification to the target project.
type Change struct {
	Kind   ChangeKind
	Path   string
	Detail string
}

// severityByKind is the authoritative classification policy. Heuristics
// that decide what kind a change is live in detection; what a kind means
// for automation lives here and nowhere else.
var severityByKind = map[ChangeKind]Severity{
	ChangeAppend:              SeveritySafe,
	ChangeDependencyAdd:       SeveritySafe,
	ChangeScriptNamespaced:    SeveritySafe,
	ChangeOverwrite:           SeverityWarn,
	ChangeDependencyUpgrade:   SeverityWarn,
	ChangeScriptCollision:     SeverityWarn,
	ChangeRemove:              SeverityBlock,
	ChangeDependencyDowngrade: SeverityBlock,
	ChangeCompilerSettings:    SeverityBlock,
	ChangeCISecrets:           SeverityBlock,
}

// Classify returns the severity tier for a change. Unknown kinds classify
// as block: a change we cannot name is a change we must not auto-apply.
func Classify(ch Change) Severity {
	if sev, ok := severityByKind[ch.Kind]; ok {
		return sev
	}
	return SeverityBlock
}
