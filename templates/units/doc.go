/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package units defines the vocabulary of template units and the fixed
// kind-priority order used to sequence their application.
//
// A template is decomposed into units (mcp-servers, tools, workflows,
// agents, integration glue), and units are applied in kind order so that
// foundational capabilities exist before their consumers reference them:
// an agent that calls a tool must be installed after the tool, a workflow
// that drives an agent after the agent's dependencies, and so on.
//
// The ordering is a deliberate simplification of a dependency-graph
// topological sort: inter-unit dependencies are assumed to correlate with
// kind, never with specific unit IDs referencing each other.
package units
