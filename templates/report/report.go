/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package report renders pipeline results and registry listings as
// markdown for terminal and PR-comment consumption.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"chainguard.dev/agentforge/templates/apply"
	"chainguard.dev/agentforge/templates/copier"
	"chainguard.dev/agentforge/templates/registry"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// createStandardTable creates a table writer with standard formatting options
// This provides consistent table formatting across all reports
func createStandardTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 100,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// Render formats an apply result as a markdown report.
func Render(result *apply.Result) string {
	var sb strings.Builder

	sb.WriteString("## Template Install Report\n\n")
	sb.WriteString(result.Message)
	sb.WriteString("\n\n")

	sb.WriteString(stepTable(result))

	if len(result.Units) > 0 {
		sb.WriteString("\n")
		sb.WriteString(unitTable(result))
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\n### Needs attention\n\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}

	if vr := result.ValidationResults; vr != nil {
		sb.WriteString("\n### Validation\n\n")
		if vr.Valid {
			fmt.Fprintf(&sb, "Project validates cleanly (%d errors fixed).\n", vr.ErrorsFixed)
		} else {
			fmt.Fprintf(&sb, "%d validation errors remain after fixing %d; finish manually.\n", vr.RemainingErrors, vr.ErrorsFixed)
		}
	}

	return sb.String()
}

func stepTable(result *apply.Result) string {
	var buf bytes.Buffer
	table := createStandardTable([]string{"Step", "Status"}, &buf)

	sr := result.StepResults
	steps := []struct {
		name string
		ok   bool
	}{
		{"Clone", sr.CloneSuccess},
		{"Discover", sr.DiscoverSuccess},
		{"Order", sr.OrderSuccess},
		{"Prepare branch", sr.PrepareBranchSuccess},
		{"Copy", sr.CopySuccess},
		{"Merge", sr.MergeSuccess},
		{"Validate", sr.ValidationSuccess},
	}
	for _, s := range steps {
		_ = table.Append([]string{s.name, statusCell(s.ok)})
	}
	_ = table.Append([]string{"Files copied", fmt.Sprintf("%d", sr.FilesCopied)})
	_ = table.Append([]string{"Conflicts skipped", fmt.Sprintf("%d", sr.ConflictsSkipped)})
	_ = table.Append([]string{"Conflicts resolved", fmt.Sprintf("%d", sr.ConflictsResolved)})

	_ = table.Render()
	return buf.String()
}

func unitTable(result *apply.Result) string {
	var buf bytes.Buffer
	table := createStandardTable([]string{"Unit", "Copied", "Merged", "Skipped", "Conflicts", "Commit", "Status"}, &buf)

	for i := range result.Units {
		ur := &result.Units[i]
		status := statusCell(!ur.Failed())
		if ur.Failed() {
			status = fmt.Sprintf("❌ %s", ur.Err)
		}
		_ = table.Append([]string{
			ur.Unit.Ref(),
			fmt.Sprintf("%d", len(ur.Copied)),
			fmt.Sprintf("%d", len(ur.Merged)),
			fmt.Sprintf("%d", ur.Skipped),
			conflictCell(ur.Conflicts),
			shortSHA(ur.CommitSHA),
			status,
		})
	}

	_ = table.Render()
	return buf.String()
}

// RenderTemplates formats registry descriptors as a markdown listing.
func RenderTemplates(descs []registry.Descriptor) string {
	if len(descs) == 0 {
		return "No templates available.\n"
	}

	var buf bytes.Buffer
	table := createStandardTable([]string{"Slug", "Title", "Units", "Tags"}, &buf)
	for _, d := range descs {
		units := len(d.Agents) + len(d.Workflows) + len(d.Tools) + len(d.MCP)
		_ = table.Append([]string{
			d.Slug,
			d.Title,
			fmt.Sprintf("%d", units),
			strings.Join(d.Tags, ", "),
		})
	}
	_ = table.Render()
	return buf.String()
}

func statusCell(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func conflictCell(conflicts []copier.Conflict) string {
	if len(conflicts) == 0 {
		return "-"
	}
	counts := map[copier.Severity]int{}
	for _, c := range conflicts {
		counts[c.Severity]++
	}
	var parts []string
	for _, sev := range []copier.Severity{copier.SeverityWarn, copier.SeverityBlock} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d", len(conflicts))
	}
	return strings.Join(parts, ", ")
}

func shortSHA(sha string) string {
	if sha == "" {
		return "-"
	}
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
