/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chainguard.dev/agentforge/templates/merge"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"
)

const systemPrompt = `You are a careful software engineer merging template changes into an existing project.
You work only through the provided tools. Read before you write. Preserve the project's existing behavior unless the instruction says otherwise.
When every requested change is made, call the finish tool with a short summary. If a requested change is marked as blocked, do not perform it.`

// Editor runs model-driven edits against a project working directory. It
// implements the edit capability consumed by the merge step and the
// validation fix loop.
type Editor struct {
	client      anthropic.Client
	modelName   string
	maxTokens   int64
	maxTurns    int
	retryConfig RetryConfig
}

// Option configures an Editor.
type Option func(*Editor) error

// WithModel sets the Claude model name.
func WithModel(name string) Option {
	return func(e *Editor) error {
		if name == "" {
			return errors.New("model name cannot be empty")
		}
		e.modelName = name
		return nil
	}
}

// WithMaxTokens sets the per-message output token limit.
func WithMaxTokens(n int64) Option {
	return func(e *Editor) error {
		if n <= 0 {
			return errors.New("max tokens must be positive")
		}
		e.maxTokens = n
		return nil
	}
}

// WithMaxTurns bounds the tool-use conversation length.
func WithMaxTurns(n int) Option {
	return func(e *Editor) error {
		if n <= 0 {
			return errors.New("max turns must be positive")
		}
		e.maxTurns = n
		return nil
	}
}

// WithRetryConfig overrides the retry behavior for transient API errors.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(e *Editor) error {
		if cfg.MaxRetries < 0 {
			return errors.New("max retries cannot be negative")
		}
		e.retryConfig = cfg
		return nil
	}
}

// New creates an Editor with the given Claude client.
func New(client anthropic.Client, opts ...Option) (*Editor, error) {
	e := &Editor{
		client:      client,
		modelName:   "claude-sonnet-4@20250514",
		maxTokens:   8192,
		maxTurns:    30,
		retryConfig: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return e, nil
}

// Edit runs the tool-use conversation for one instruction and returns the
// model's summary of what it changed.
func (e *Editor) Edit(ctx context.Context, insn merge.Instruction) (*merge.Outcome, error) {
	log := clog.FromContext(ctx)

	if insn.WorkDir == "" {
		return nil, errors.New("instruction has no working directory")
	}
	sess := newSession(insn.WorkDir, insn.AllowedPaths)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(e.modelName),
		MaxTokens: e.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Tools:     toolDefinitions(),
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(insn.Prompt),
			},
		}},
	}
	params.Temperature = anthropic.Float(0.1)

	log.With("prompt_length", len(insn.Prompt)).
		With("allowed_paths", len(insn.AllowedPaths)).
		Info("Starting edit conversation")

	for turn := 0; turn < e.maxTurns; turn++ {
		message, err := retryWithBackoff(ctx, e.retryConfig, "stream_message", isRetryableAPIError, func() (anthropic.Message, error) {
			stream := e.client.Messages.NewStreaming(ctx, params)
			var msg anthropic.Message
			for stream.Next() {
				event := stream.Current()
				if err := msg.Accumulate(event); err != nil {
					return msg, fmt.Errorf("accumulating event: %w", err)
				}
			}
			if err := stream.Err(); err != nil {
				return msg, err
			}
			return msg, nil
		})
		if err != nil {
			return nil, fmt.Errorf("streaming response: %w", err)
		}

		var toolUseBlocks []anthropic.ToolUseBlock
		var textContent string
		for _, content := range message.Content {
			switch content.Type {
			case "text":
				textContent = content.Text
			case "tool_use":
				toolUseBlocks = append(toolUseBlocks, anthropic.ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			}
		}

		if len(toolUseBlocks) == 0 {
			// The model stopped without calling finish; take its text as
			// the summary.
			if textContent == "" {
				return nil, errors.New("no content in the model's response")
			}
			return &merge.Outcome{Summary: textContent}, nil
		}

		params.Messages = append(params.Messages, message.ToParam())

		var toolResults []anthropic.ContentBlockParamUnion
		for _, toolUse := range toolUseBlocks {
			log.With("tool", toolUse.Name).With("id", toolUse.ID).Info("Executing tool call")

			if toolUse.Name == finishToolName {
				var done struct {
					Summary string `json:"summary"`
				}
				if err := json.Unmarshal([]byte(toolUse.Input), &done); err != nil {
					return nil, fmt.Errorf("parsing finish parameters: %w", err)
				}
				log.Info("Edit conversation finished")
				return &merge.Outcome{Summary: done.Summary}, nil
			}

			result := e.dispatch(ctx, sess, toolUse)
			resultBytes, err := json.Marshal(result)
			if err != nil {
				return nil, fmt.Errorf("marshaling tool result: %w", err)
			}
			toolResults = append(toolResults, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: toolUse.ID,
					Content: []anthropic.ToolResultBlockParamContentUnion{{
						OfText: &anthropic.TextBlockParam{
							Text: string(resultBytes),
						},
					}},
				},
			})
		}

		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: toolResults,
		})
	}

	return nil, fmt.Errorf("edit did not finish within %d turns", e.maxTurns)
}

func (e *Editor) dispatch(ctx context.Context, sess *session, toolUse anthropic.ToolUseBlock) map[string]any {
	t, ok := toolRegistry[toolUse.Name]
	if !ok || t.handler == nil {
		clog.FromContext(ctx).With("tool", toolUse.Name).Error("Unknown tool requested")
		return map[string]any{"error": fmt.Sprintf("unknown tool: %q", toolUse.Name)}
	}
	return t.handler(ctx, sess, []byte(toolUse.Input))
}
