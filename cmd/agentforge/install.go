/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"errors"
	"fmt"

	"chainguard.dev/agentforge/agents/editor"
	"chainguard.dev/agentforge/templates/apply"
	"chainguard.dev/agentforge/templates/registry"
	"chainguard.dev/agentforge/templates/report"
	"chainguard.dev/agentforge/templates/validate"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
)

func newInstallCommand(cfg *config) *cobra.Command {
	var (
		ref          string
		slug         string
		target       string
		noEdit       bool
		skipValidate bool
	)

	cmd := &cobra.Command{
		Use:   "install <repo>",
		Short: "Install a template from a git repository into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := clog.FromContext(ctx)

			opts := []apply.Option{apply.WithMaxFixIterations(cfg.MaxFixIterations)}

			if cfg.RegistryURL != "" {
				client, err := registry.NewClient(cfg.RegistryURL)
				if err != nil {
					return fmt.Errorf("creating registry client: %w", err)
				}
				opts = append(opts, apply.WithRegistry(client))
			}

			if !noEdit {
				if cfg.GCPProjectID == "" {
					return errors.New("GCP_PROJECT_ID is required for model-driven merging; pass --no-edit to install without it")
				}
				client := anthropic.NewClient(
					vertex.WithGoogleAuth(ctx, cfg.GCPRegion, cfg.GCPProjectID),
				)
				ed, err := editor.New(client, editor.WithModel(cfg.ClaudeModel))
				if err != nil {
					return fmt.Errorf("creating editor: %w", err)
				}
				opts = append(opts, apply.WithEditor(ed))
				log.Infof("Model-driven merging enabled with %s", cfg.ClaudeModel)
			}

			if !skipValidate {
				opts = append(opts, apply.WithValidator(validate.NewCommandValidator(nil)))
			}

			result := apply.NewPipeline(opts...).Apply(ctx, apply.Request{
				Repo:       args[0],
				Ref:        ref,
				Slug:       slug,
				TargetPath: target,
			})

			fmt.Fprint(cmd.OutOrStdout(), report.Render(result))
			if !result.Success {
				return fmt.Errorf("install did not fully succeed: %s", result.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "tag, branch, or commit to install from (default: main)")
	cmd.Flags().StringVar(&slug, "slug", "", "template slug (default: inferred from the repo name)")
	cmd.Flags().StringVar(&target, "target", "", "project directory to install into (default: current directory)")
	cmd.Flags().BoolVar(&noEdit, "no-edit", false, "skip model-driven conflict resolution and fixing")
	cmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "skip the post-merge validation loop")

	return cmd
}
