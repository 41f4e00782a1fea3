/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// session is the per-Edit file-access scope: reads anywhere inside the
// working directory, writes only to the allowed paths.
type session struct {
	root    string
	allowed []string
}

func newSession(root string, allowed []string) *session {
	norm := make([]string, 0, len(allowed))
	for _, p := range allowed {
		norm = append(norm, filepath.ToSlash(filepath.Clean(p)))
	}
	return &session{root: root, allowed: norm}
}

// resolve turns a model-supplied relative path into an absolute one inside
// the session root, rejecting anything that escapes it.
func (s *session) resolve(rel string) (string, string, error) {
	clean := filepath.ToSlash(filepath.Clean(rel))
	if filepath.IsAbs(rel) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("path %q escapes the working directory", rel)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), clean, nil
}

// writable reports whether a normalized path falls inside the allowed set.
// An allowed entry that names a directory covers everything beneath it, and
// "." covers the whole session root. Git metadata is never writable.
func (s *session) writable(clean string) bool {
	if clean == ".git" || strings.HasPrefix(clean, ".git/") {
		return false
	}
	for _, a := range s.allowed {
		if a == "." || clean == a || strings.HasPrefix(clean, a+"/") {
			return true
		}
	}
	return false
}

func (s *session) readFile(rel string) (string, error) {
	abs, _, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *session) writeFile(rel, content string, executable bool) error {
	abs, clean, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if !s.writable(clean) {
		return fmt.Errorf("path %q is outside the allowed file set for this edit", rel)
	}

	mode := os.FileMode(0o644)
	if executable {
		mode = 0o755
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), mode)
}

func (s *session) listDirectory(rel string) ([]string, error) {
	abs, _, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
