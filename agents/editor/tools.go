/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package editor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

// finishToolName is the tool the model calls to end the edit.
const finishToolName = "finish"

// tool pairs a Claude tool definition with its handler. The registry is
// statically declared; nothing is probed or filtered at runtime.
type tool struct {
	definition anthropic.ToolParam
	handler    func(ctx context.Context, s *session, input json.RawMessage) map[string]any
}

var toolRegistry = map[string]tool{
	"read_file": {
		definition: anthropic.ToolParam{
			Name:        "read_file",
			Description: anthropic.String("Read the complete content of a file in the project."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"reasoning": map[string]any{
						"type":        "string",
						"description": "Explain why you are reading this file.",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "The path to the file to read (relative to the project root)",
					},
				},
				Required: []string{"reasoning", "path"},
			},
		},
		handler: readFileHandler,
	},
	"write_file": {
		definition: anthropic.ToolParam{
			Name:        "write_file",
			Description: anthropic.String("Create or update a file in the project. Only the files this edit is scoped to may be written."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"reasoning": map[string]any{
						"type":        "string",
						"description": "Explain why you are writing this file.",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "The path to the file to write (relative to the project root)",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The complete content to write to the file",
					},
					"executable": map[string]any{
						"type":        "boolean",
						"description": "Whether the file should be executable (default: false)",
					},
				},
				Required: []string{"reasoning", "path", "content"},
			},
		},
		handler: writeFileHandler,
	},
	"list_directory": {
		definition: anthropic.ToolParam{
			Name:        "list_directory",
			Description: anthropic.String("List the contents of a directory in the project."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"reasoning": map[string]any{
						"type":        "string",
						"description": "Explain why you are listing this directory.",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "The path to the directory to list (relative to the project root, use '.' for the root)",
					},
				},
				Required: []string{"reasoning", "path"},
			},
		},
		handler: listDirectoryHandler,
	},
	finishToolName: {
		definition: anthropic.ToolParam{
			Name:        finishToolName,
			Description: anthropic.String("Signal that the edit is complete. Call this exactly once, when every requested change has been made."),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type: "object",
				Properties: map[string]any{
					"summary": map[string]any{
						"type":        "string",
						"description": "A short summary of the changes that were made",
					},
				},
				Required: []string{"summary"},
			},
		},
		// Handled by the conversation loop; never dispatched here.
		handler: nil,
	},
}

// toolDefinitions returns the registry's definitions in a deterministic
// order for the API request.
func toolDefinitions() []anthropic.ToolUnionParam {
	names := []string{"read_file", "write_file", "list_directory", finishToolName}
	defs := make([]anthropic.ToolUnionParam, 0, len(names))
	for _, name := range names {
		t := toolRegistry[name]
		defs = append(defs, anthropic.ToolUnionParam{OfTool: &t.definition})
	}
	return defs
}

func errorResult(err error, context map[string]any) map[string]any {
	result := map[string]any{"error": err.Error()}
	for k, v := range context {
		result[k] = v
	}
	return result
}

func readFileHandler(ctx context.Context, s *session, input json.RawMessage) map[string]any {
	var params struct {
		Reasoning string `json:"reasoning"`
		Path      string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errorResult(fmt.Errorf("parsing parameters: %w", err), nil)
	}
	log := clog.FromContext(ctx)
	log.With("reasoning", params.Reasoning).Info("Tool call reasoning")

	content, err := s.readFile(params.Path)
	if err != nil {
		log.With("path", params.Path).With("error", err).Error("Failed to read file")
		return errorResult(err, map[string]any{"path": params.Path})
	}
	return map[string]any{"path": params.Path, "content": content, "size": len(content)}
}

func writeFileHandler(ctx context.Context, s *session, input json.RawMessage) map[string]any {
	var params struct {
		Reasoning  string `json:"reasoning"`
		Path       string `json:"path"`
		Content    string `json:"content"`
		Executable bool   `json:"executable"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errorResult(fmt.Errorf("parsing parameters: %w", err), nil)
	}
	log := clog.FromContext(ctx)
	log.With("reasoning", params.Reasoning).Info("Tool call reasoning")

	if err := s.writeFile(params.Path, params.Content, params.Executable); err != nil {
		log.With("path", params.Path).With("error", err).Error("Failed to write file")
		return errorResult(err, map[string]any{"path": params.Path})
	}
	return map[string]any{"path": params.Path, "written": len(params.Content)}
}

func listDirectoryHandler(ctx context.Context, s *session, input json.RawMessage) map[string]any {
	var params struct {
		Reasoning string `json:"reasoning"`
		Path      string `json:"path"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return errorResult(fmt.Errorf("parsing parameters: %w", err), nil)
	}
	log := clog.FromContext(ctx)
	log.With("reasoning", params.Reasoning).Info("Tool call reasoning")

	entries, err := s.listDirectory(params.Path)
	if err != nil {
		log.With("path", params.Path).With("error", err).Error("Failed to list directory")
		return errorResult(err, map[string]any{"path": params.Path})
	}
	return map[string]any{"path": params.Path, "entries": entries, "count": len(entries)}
}
