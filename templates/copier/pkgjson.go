/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package copier

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

var dependencyFields = []string{"dependencies", "devDependencies", "peerDependencies"}

// diffPackageJSON compares a template package.json against the target's and
// produces per-entry changes plus, when only safe additions are involved,
// the merged document to write back.
func diffPackageJSON(srcData, dstData []byte, path, unitID string) ([]Change, []byte, error) {
	var src, dst map[string]any
	if err := json.Unmarshal(srcData, &src); err != nil {
		return nil, nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	if err := json.Unmarshal(dstData, &dst); err != nil {
		return nil, nil, fmt.Errorf("parsing target %s: %w", path, err)
	}

	var changes []Change
	merged := false

	for _, field := range dependencyFields {
		srcDeps := stringMap(src[field])
		dstDeps := stringMap(dst[field])
		if srcDeps == nil {
			continue
		}

		for _, name := range sortedKeys(srcDeps) {
			want := srcDeps[name]
			have, exists := dstDeps[name]
			switch {
			case !exists:
				changes = append(changes, Change{
					Kind:   ChangeDependencyAdd,
					Path:   path,
					Detail: fmt.Sprintf("add %s %s to %s", name, want, field),
				})
				setEntry(dst, field, name, ResolveVersionRange(want, have))
				merged = true
			case have == want:
				// Already satisfied.
			case rangeDirection(have, want) == directionDowngrade:
				changes = append(changes, Change{
					Kind:   ChangeDependencyDowngrade,
					Path:   path,
					Detail: fmt.Sprintf("%s: %s %s -> %s", field, name, have, want),
				})
			default:
				// Upgrades and uncomparable range rewrites both route to
				// the merge step.
				changes = append(changes, Change{
					Kind:   ChangeDependencyUpgrade,
					Path:   path,
					Detail: fmt.Sprintf("%s: %s %s -> %s", field, name, have, want),
				})
			}
		}
	}

	srcScripts := stringMap(src["scripts"])
	dstScripts := stringMap(dst["scripts"])
	for _, name := range sortedKeys(srcScripts) {
		want := srcScripts[name]
		have, exists := dstScripts[name]
		switch {
		case !exists && hasNamespacePrefix(name, unitID):
			changes = append(changes, Change{
				Kind:   ChangeScriptNamespaced,
				Path:   path,
				Detail: fmt.Sprintf("add script %q", name),
			})
			setEntry(dst, "scripts", name, want)
			merged = true
		case !exists, have != want:
			changes = append(changes, Change{
				Kind:   ChangeScriptCollision,
				Path:   path,
				Detail: fmt.Sprintf("script %q", name),
			})
		}
	}

	if !restEqual(src, dst) {
		changes = append(changes, Change{
			Kind:   ChangeOverwrite,
			Path:   path,
			Detail: "fields outside dependencies/scripts differ",
		})
	}

	var out []byte
	if merged {
		var err error
		out, err = json.MarshalIndent(dst, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encoding merged %s: %w", path, err)
		}
		out = append(out, '\n')
	}
	return changes, out, nil
}

// hasNamespacePrefix reports whether a script entry lives under the unit's
// namespace, e.g. "triager:serve" for unit id "triager".
func hasNamespacePrefix(script, unitID string) bool {
	return unitID != "" && len(script) > len(unitID) &&
		script[:len(unitID)] == unitID && script[len(unitID)] == ':'
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setEntry(doc map[string]any, field, key string, value string) {
	m, ok := doc[field].(map[string]any)
	if !ok {
		m = map[string]any{}
		doc[field] = m
	}
	m[key] = value
}

// restEqual compares the documents with the merge-managed fields and the
// project-identity fields removed. The target keeps its own name and
// version; they are not something a template install should contest.
func restEqual(src, dst map[string]any) bool {
	managed := map[string]bool{
		"dependencies": true, "devDependencies": true, "peerDependencies": true,
		"scripts": true, "name": true, "version": true, "description": true,
		"private": true,
	}
	for k, v := range src {
		if managed[k] {
			continue
		}
		if have, ok := dst[k]; !ok || !reflect.DeepEqual(have, v) {
			return false
		}
	}
	return true
}
