/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package editor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/go-cmp/cmp"
)

func TestSessionWriteScope(t *testing.T) {
	root := t.TempDir()
	sess := newSession(root, []string{"workflows/esc.yaml", "config"})

	if err := sess.writeFile("workflows/esc.yaml", "steps: [notify]", false); err != nil {
		t.Fatalf("allowed write: %v", err)
	}
	if err := sess.writeFile("config/app.json", "{}", false); err != nil {
		t.Fatalf("write under allowed directory: %v", err)
	}

	if err := sess.writeFile("src/index.ts", "export {}", false); err == nil {
		t.Fatal("write outside the allowed set must fail")
	}
	if err := sess.writeFile("../outside.txt", "x", false); err == nil {
		t.Fatal("write escaping the root must fail")
	}
	if err := sess.writeFile("/etc/passwd", "x", false); err == nil {
		t.Fatal("absolute write must fail")
	}
	if _, err := os.Stat(filepath.Join(root, "src/index.ts")); !os.IsNotExist(err) {
		t.Fatal("rejected write must not create the file")
	}
}

func TestSessionProjectWideAllowance(t *testing.T) {
	// A "." entry, as issued by the validation fix loop, covers every
	// path under the root while git metadata and escapes stay rejected.
	root := t.TempDir()
	sess := newSession(root, []string{"."})

	if err := sess.writeFile("src/index.ts", "export {}", false); err != nil {
		t.Fatalf("write under root allowance: %v", err)
	}
	if err := sess.writeFile("package.json", "{}", false); err != nil {
		t.Fatalf("write at root: %v", err)
	}

	if err := sess.writeFile(".git/config", "[core]", false); err == nil {
		t.Fatal("write into git metadata must fail")
	}
	if err := sess.writeFile("../outside.txt", "x", false); err == nil {
		t.Fatal("write escaping the root must fail")
	}
}

func TestSessionWriteExecutable(t *testing.T) {
	root := t.TempDir()
	sess := newSession(root, []string{"scripts/run.sh"})

	if err := sess.writeFile("scripts/run.sh", "#!/bin/sh\n", true); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	fi, err := os.Stat(filepath.Join(root, "scripts/run.sh"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if fi.Mode()&0o111 == 0 {
		t.Error("executable bit not set")
	}
}

func TestSessionReadsAnywhereInsideRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.md"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sess := newSession(root, nil)

	got, err := sess.readFile("notes.md")
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	if got != "hello" {
		t.Errorf("readFile = %q", got)
	}

	if _, err := sess.readFile("../notes.md"); err == nil {
		t.Fatal("read escaping the root must fail")
	}
}

func TestSessionListDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tools"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "b.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sess := newSession(root, nil)

	got, err := sess.listDirectory(".")
	if err != nil {
		t.Fatalf("listDirectory: %v", err)
	}
	want := []string{"a.txt", "b.txt", "tools/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestToolHandlers(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	sess := newSession(root, []string{"greeting.txt"})

	input, _ := json.Marshal(map[string]any{
		"reasoning": "writing the requested file",
		"path":      "greeting.txt",
		"content":   "hello",
	})
	result := writeFileHandler(ctx, sess, input)
	if result["error"] != nil {
		t.Fatalf("writeFileHandler: %v", result["error"])
	}

	input, _ = json.Marshal(map[string]any{"reasoning": "checking the write", "path": "greeting.txt"})
	result = readFileHandler(ctx, sess, input)
	if result["content"] != "hello" {
		t.Fatalf("readFileHandler = %v", result)
	}

	input, _ = json.Marshal(map[string]any{
		"reasoning": "trying to escape",
		"path":      "package.json",
		"content":   "{}",
	})
	result = writeFileHandler(ctx, sess, input)
	errMsg, _ := result["error"].(string)
	if !strings.Contains(errMsg, "outside the allowed file set") {
		t.Fatalf("out-of-scope write = %v", result)
	}

	result = readFileHandler(ctx, sess, []byte("not json"))
	if result["error"] == nil {
		t.Fatal("malformed input must produce an error result")
	}
}

func TestToolDefinitions(t *testing.T) {
	defs := toolDefinitions()
	if len(defs) != 4 {
		t.Fatalf("got %d tool definitions", len(defs))
	}
	var names []string
	for _, d := range defs {
		names = append(names, d.OfTool.Name)
	}
	want := []string{"read_file", "write_file", "list_directory", "finish"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tool order mismatch (-want +got):\n%s", diff)
	}
}

func TestNewOptionValidation(t *testing.T) {
	var client anthropic.Client

	if _, err := New(client, WithModel("")); err == nil {
		t.Error("empty model must be rejected")
	}
	if _, err := New(client, WithMaxTokens(0)); err == nil {
		t.Error("zero max tokens must be rejected")
	}
	if _, err := New(client, WithMaxTurns(-1)); err == nil {
		t.Error("negative max turns must be rejected")
	}

	e, err := New(client, WithModel("claude-opus-4-1@20250805"), WithMaxTurns(10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.modelName != "claude-opus-4-1@20250805" || e.maxTurns != 10 {
		t.Errorf("editor = %+v", e)
	}
}
