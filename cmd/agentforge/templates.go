/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"

	"chainguard.dev/agentforge/templates/registry"
	"chainguard.dev/agentforge/templates/report"
	"github.com/spf13/cobra"
)

func newTemplatesCommand(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Interact with the template registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the templates the registry offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := registry.NewClient(cfg.RegistryURL)
			if err != nil {
				return fmt.Errorf("creating registry client: %w", err)
			}
			descs, err := client.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing templates: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), report.RenderTemplates(descs))
			return nil
		},
	})

	return cmd
}
