/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package discovery enumerates the units a cloned template contains and
// builds the manifest the rest of the pipeline consumes.
//
// Units come from three sources, merged in order: the registry descriptor
// for the template's slug, an optional template.yaml manifest in the
// template root, and a structural scan of the conventional unit
// directories. Every manifest additionally carries one integration unit
// with the fixed id "general" for the non-unit-specific files (config,
// docs, package manifest deltas) that must be merged regardless of which
// units were selected.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"chainguard.dev/agentforge/templates/registry"
	"chainguard.dev/agentforge/templates/units"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"
)

// ManifestFileName is the optional per-template manifest in the template root.
const ManifestFileName = "template.yaml"

// IntegrationUnitID is the fixed id of the always-present integration unit.
const IntegrationUnitID = "general"

// Manifest describes everything a merge run needs to know about a template.
// It is created once per run, immediately after discovery, and read-only
// afterward.
type Manifest struct {
	Slug        string       `json:"slug"`
	Ref         string       `json:"ref,omitempty"`
	Description string       `json:"description,omitempty"`
	Units       []units.Unit `json:"units"`

	// Removals lists target-relative paths the template asks to delete.
	// Deletions are never auto-applied; the copier classifies each as a
	// block-tier conflict.
	Removals []string `json:"removals,omitempty"`
}

// templateManifest is the template.yaml shape.
type templateManifest struct {
	Description string   `yaml:"description"`
	Agents      []string `yaml:"agents"`
	Workflows   []string `yaml:"workflows"`
	Tools       []string `yaml:"tools"`
	MCP         []string `yaml:"mcp"`
	Remove      []string `yaml:"remove"`
}

// kindDirs maps unit kinds to their conventional subdirectory in a template.
var kindDirs = map[units.Kind]string{
	units.KindMCPServer: "mcp-servers",
	units.KindTool:      "tools",
	units.KindWorkflow:  "workflows",
	units.KindAgent:     "agents",
}

// scanKinds is the declaration order used when merging unit sources.
var scanKinds = []units.Kind{
	units.KindMCPServer,
	units.KindTool,
	units.KindWorkflow,
	units.KindAgent,
}

// Discover builds the Manifest for a cloned template. desc is the registry
// descriptor for the slug and may be nil when the registry was unreachable;
// in that case the template must declare its own template.yaml, otherwise
// discovery fails.
func Discover(ctx context.Context, templateDir, slug, ref string, desc *registry.Descriptor) (*Manifest, error) {
	if slug == "" {
		return nil, errors.New("slug cannot be empty")
	}
	if _, err := os.Stat(templateDir); err != nil {
		return nil, fmt.Errorf("template directory: %w", err)
	}

	tm, hasManifest, err := readTemplateManifest(templateDir)
	if err != nil {
		return nil, err
	}
	if desc == nil && !hasManifest {
		return nil, fmt.Errorf("template %q has no registry descriptor and no %s", slug, ManifestFileName)
	}

	m := &Manifest{Slug: slug, Ref: ref}
	if desc != nil {
		m.Description = desc.Description
	}
	if m.Description == "" {
		m.Description = tm.Description
	}
	m.Removals = tm.Remove

	declared := map[units.Kind][]string{}
	if desc != nil {
		declared[units.KindMCPServer] = desc.MCP
		declared[units.KindTool] = desc.Tools
		declared[units.KindWorkflow] = desc.Workflows
		declared[units.KindAgent] = desc.Agents
	}
	appendNames(declared, units.KindMCPServer, tm.MCP)
	appendNames(declared, units.KindTool, tm.Tools)
	appendNames(declared, units.KindWorkflow, tm.Workflows)
	appendNames(declared, units.KindAgent, tm.Agents)

	seen := map[string]bool{}
	for _, kind := range scanKinds {
		names := declared[kind]
		names = append(names, scanKindDir(templateDir, kindDirs[kind])...)

		for _, name := range names {
			key := string(kind) + "/" + name
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			m.Units = append(m.Units, units.Unit{
				Kind: kind,
				ID:   name,
				File: unitFile(templateDir, kindDirs[kind], name),
			})
		}
	}

	// Non-unit-specific files are carried by a single integration unit
	// that is always present.
	m.Units = append(m.Units, units.Unit{
		Kind: units.KindIntegration,
		ID:   IntegrationUnitID,
		File: ".",
	})

	clog.FromContext(ctx).Infof("Discovered %d units in template %s", len(m.Units), slug)
	return m, nil
}

func appendNames(declared map[units.Kind][]string, kind units.Kind, names []string) {
	declared[kind] = append(declared[kind], names...)
}

func readTemplateManifest(templateDir string) (*templateManifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(templateDir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &templateManifest{}, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", ManifestFileName, err)
	}

	var tm templateManifest
	if err := yaml.Unmarshal(data, &tm); err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", ManifestFileName, err)
	}
	return &tm, true, nil
}

// scanKindDir lists the units present under a conventional directory. A
// subdirectory is a unit; a lone file contributes its basename sans
// extension. Results are sorted so scan order is deterministic.
func scanKindDir(templateDir, kindDir string) []string {
	if kindDir == "" {
		return nil
	}
	entries, err := os.ReadDir(filepath.Join(templateDir, kindDir))
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			ext := filepath.Ext(name)
			name = name[:len(name)-len(ext)]
		}
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// unitFile resolves a unit's primary source path relative to the template
// root: the unit's directory if one exists, otherwise the first file
// matching <kindDir>/<name>.*.
func unitFile(templateDir, kindDir, name string) string {
	dirPath := filepath.Join(kindDir, name)
	if fi, err := os.Stat(filepath.Join(templateDir, dirPath)); err == nil && fi.IsDir() {
		return filepath.ToSlash(dirPath)
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(templateDir, kindDir, name+".*"))
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		if rel, err := filepath.Rel(templateDir, matches[0]); err == nil {
			return filepath.ToSlash(rel)
		}
	}

	return filepath.ToSlash(dirPath)
}
