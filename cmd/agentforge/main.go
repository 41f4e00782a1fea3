/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main implements the agentforge CLI: it installs agent templates
// into existing projects and lists what the template registry offers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type config struct {
	// RegistryURL is the template registry endpoint.
	RegistryURL string `env:"AGENTFORGE_REGISTRY_URL,default=https://registry.agentforge.dev/templates"`

	// Claude configuration for the model-driven merge and fix steps.
	GCPProjectID string `env:"GCP_PROJECT_ID"`
	GCPRegion    string `env:"GCP_REGION,default=us-central1"`
	ClaudeModel  string `env:"CLAUDE_MODEL,default=claude-sonnet-4-5@20250929"`

	MaxFixIterations int `env:"MAX_FIX_ITERATIONS,default=5"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	root := &cobra.Command{
		Use:           "agentforge",
		Short:         "Install agent templates into existing projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInstallCommand(&cfg))
	root.AddCommand(newTemplatesCommand(&cfg))

	if err := root.ExecuteContext(ctx); err != nil {
		clog.FatalContextf(ctx, "%v", err)
	}
}
