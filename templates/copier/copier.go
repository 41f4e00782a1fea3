/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package copier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/agentforge/templates/units"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/chainguard-dev/clog"
	"github.com/zeebo/blake3"
)

// UnitRef is the (kind, id) identity of the unit a record belongs to.
type UnitRef struct {
	Kind units.Kind `json:"kind"`
	ID   string     `json:"id"`
}

// CopiedFile records one file placed in the target project without
// conflict. The list is append-only across units.
type CopiedFile struct {
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Unit        UnitRef `json:"unit"`
}

// Conflict records a destination that already exists and cannot be
// auto-resolved.
type Conflict struct {
	Unit       UnitRef  `json:"unit"`
	Issue      string   `json:"issue"`
	SourceFile string   `json:"sourceFile"`
	TargetFile string   `json:"targetFile"`
	Severity   Severity `json:"severity"`
}

// UnitOutcome summarizes applying one unit's files.
type UnitOutcome struct {
	Unit      units.Unit
	Copied    []CopiedFile
	Merged    []string // safe-tier auto-merges applied
	Skipped   int      // byte-identical destinations (already applied)
	Conflicts []Conflict
}

// TouchedPaths returns the target-relative paths this outcome wrote or may
// write, for scoped staging and for the editor's allowed-path set.
func (o *UnitOutcome) TouchedPaths() []string {
	var paths []string
	for _, cf := range o.Copied {
		paths = append(paths, cf.Destination)
	}
	paths = append(paths, o.Merged...)
	for _, c := range o.Conflicts {
		if c.Severity == SeverityWarn {
			paths = append(paths, c.TargetFile)
		}
	}
	return paths
}

// Copier maps a cloned template's files into a target project.
type Copier struct {
	templateDir string
	targetDir   string
}

// New constructs a Copier for a template/target pair.
func New(templateDir, targetDir string) (*Copier, error) {
	if templateDir == "" || targetDir == "" {
		return nil, errors.New("template and target directories cannot be empty")
	}
	return &Copier{templateDir: templateDir, targetDir: targetDir}, nil
}

// kindDirPrefixes marks the conventional unit directories the integration
// unit must not absorb.
var kindDirPrefixes = []string{"mcp-servers/", "tools/", "workflows/", "agents/"}

// ApplyUnit copies one unit's files into the target project, auto-merging
// safe changes and recording everything else as conflicts.
func (c *Copier) ApplyUnit(ctx context.Context, u units.Unit) (*UnitOutcome, error) {
	outcome := &UnitOutcome{Unit: u}
	ref := UnitRef{Kind: u.Kind, ID: u.ID}

	files, err := c.unitFiles(u)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		clog.FromContext(ctx).Debugf("Unit %s has no files in template", u.Ref())
		return outcome, nil
	}

	for _, rel := range files {
		srcPath := filepath.Join(c.templateDir, rel)
		dstPath := filepath.Join(c.targetDir, rel)

		srcData, err := os.ReadFile(srcPath)
		if err != nil {
			return nil, fmt.Errorf("reading template file %s: %w", rel, err)
		}

		dstData, err := os.ReadFile(dstPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Additive: auto-approved, no prompt, no block.
			if err := c.writeFile(srcPath, dstPath, srcData); err != nil {
				return nil, err
			}
			outcome.Copied = append(outcome.Copied, CopiedFile{
				Source:      rel,
				Destination: rel,
				Unit:        ref,
			})
		case err != nil:
			return nil, fmt.Errorf("reading target file %s: %w", rel, err)
		case blake3.Sum256(srcData) == blake3.Sum256(dstData):
			// Already applied; idempotent re-run.
			outcome.Skipped++
		default:
			if err := c.resolveExisting(ctx, outcome, ref, rel, srcPath, dstPath, srcData, dstData); err != nil {
				return nil, err
			}
		}
	}

	clog.FromContext(ctx).Infof("Unit %s: %d copied, %d merged, %d skipped, %d conflicts",
		u.Ref(), len(outcome.Copied), len(outcome.Merged), outcome.Skipped, len(outcome.Conflicts))
	return outcome, nil
}

// RemovalConflicts classifies template-requested deletions. Deletions are
// always block-tier and are only reported for paths that exist in the
// target; there is nothing to protect otherwise.
func (c *Copier) RemovalConflicts(ref UnitRef, removals []string) []Conflict {
	var conflicts []Conflict
	for _, rel := range removals {
		if _, err := os.Stat(filepath.Join(c.targetDir, rel)); err != nil {
			continue
		}
		ch := Change{Kind: ChangeRemove, Path: rel, Detail: "template requests deletion"}
		conflicts = append(conflicts, Conflict{
			Unit:       ref,
			Issue:      fmt.Sprintf("template requests deletion of %s", rel),
			SourceFile: rel,
			TargetFile: rel,
			Severity:   Classify(ch),
		})
	}
	return conflicts
}

// resolveExisting handles a destination that exists with different content.
func (c *Copier) resolveExisting(ctx context.Context, outcome *UnitOutcome, ref UnitRef, rel, srcPath, dstPath string, srcData, dstData []byte) error {
	changes, mergedOut, err := detectChanges(rel, ref.ID, srcData, dstData)
	if err != nil {
		return err
	}

	for _, ch := range changes {
		sev := Classify(ch)
		if sev == SeveritySafe {
			continue
		}
		outcome.Conflicts = append(outcome.Conflicts, Conflict{
			Unit:       ref,
			Issue:      fmt.Sprintf("%s: %s", ch.Kind, ch.Detail),
			SourceFile: rel,
			TargetFile: rel,
			Severity:   sev,
		})
	}

	if len(mergedOut) > 0 && onlyWarnBeyondSafe(changes) {
		// Safe additions apply even when warn-tier changes ride along;
		// the warn conflicts stay recorded for the merge step.
		if err := c.writeFile(srcPath, dstPath, mergedOut); err != nil {
			return err
		}
		outcome.Merged = append(outcome.Merged, rel)
		clog.FromContext(ctx).Debugf("Auto-merged safe changes into %s", rel)
	}
	return nil
}

// onlyWarnBeyondSafe reports whether no change in the set is block-tier.
// Block-tier findings freeze the file entirely: nothing is auto-applied to
// a file that also needs a destructive change.
func onlyWarnBeyondSafe(changes []Change) bool {
	for _, ch := range changes {
		if Classify(ch) == SeverityBlock {
			return false
		}
	}
	return true
}

// detectChanges inspects a source/destination pair and names the changes
// the template proposes. Returned merged content, when non-empty, holds the
// destination with all safe changes already applied.
func detectChanges(rel, unitID string, srcData, dstData []byte) ([]Change, []byte, error) {
	base := filepath.Base(rel)

	switch {
	case base == "package.json":
		return diffPackageJSON(srcData, dstData, rel, unitID)

	case base == "tsconfig.json":
		return []Change{{
			Kind:   ChangeCompilerSettings,
			Path:   rel,
			Detail: "compiler configuration differs",
		}}, nil, nil

	case isCIPath(rel) && mentionsSecrets(srcData, dstData):
		return []Change{{
			Kind:   ChangeCISecrets,
			Path:   rel,
			Detail: "CI configuration references secrets",
		}}, nil, nil

	case bytes.HasPrefix(srcData, dstData):
		// Destination is a strict prefix of the template's content: the
		// template only appends.
		return []Change{{
			Kind:   ChangeAppend,
			Path:   rel,
			Detail: fmt.Sprintf("append %d bytes", len(srcData)-len(dstData)),
		}}, srcData, nil

	default:
		return []Change{{
			Kind:   ChangeOverwrite,
			Path:   rel,
			Detail: "existing file body differs",
		}}, nil, nil
	}
}

func isCIPath(rel string) bool {
	rel = filepath.ToSlash(rel)
	return strings.HasPrefix(rel, ".github/") || strings.HasPrefix(rel, ".gitlab-ci")
}

func mentionsSecrets(srcData, dstData []byte) bool {
	return bytes.Contains(srcData, []byte("secrets.")) || bytes.Contains(dstData, []byte("secrets."))
}

// unitFiles enumerates a unit's files relative to the template root.
func (c *Copier) unitFiles(u units.Unit) ([]string, error) {
	if u.Kind == units.KindIntegration {
		return c.integrationFiles()
	}

	srcPath := filepath.Join(c.templateDir, u.File)
	fi, err := os.Stat(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stating unit file %s: %w", u.File, err)
	}

	if !fi.IsDir() {
		return []string{filepath.ToSlash(u.File)}, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(srcPath, "**"))
	if err != nil {
		return nil, fmt.Errorf("globbing unit dir %s: %w", u.File, err)
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(c.templateDir, m)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s: %w", m, err)
		}
		files = append(files, filepath.ToSlash(rel))
	}
	return files, nil
}

// integrationFiles returns every template file that no unit owns: config,
// docs, and package manifest deltas outside the conventional unit dirs.
func (c *Copier) integrationFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.templateDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.templateDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == ".git" {
				return fs.SkipDir
			}
			for _, prefix := range kindDirPrefixes {
				if rel+"/" == prefix {
					return fs.SkipDir
				}
			}
			return nil
		}
		if rel == "template.yaml" {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking template: %w", err)
	}
	return files, nil
}

func (c *Copier) writeFile(srcPath, dstPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	mode := os.FileMode(0o644)
	if fi, err := os.Stat(srcPath); err == nil && fi.Mode()&0o111 != 0 {
		mode = 0o755
	}
	if err := os.WriteFile(dstPath, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", dstPath, err)
	}
	return nil
}
