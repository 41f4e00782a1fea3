/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRegistry = `[
  {
    "slug": "support-triage",
    "title": "Support Triage",
    "description": "Agents for triaging support tickets",
    "githubUrl": "https://github.com/org/support-triage",
    "tags": ["support"],
    "agents": ["triager"],
    "workflows": ["escalation"],
    "tools": ["ticket-search"],
    "mcp": ["zendesk"]
  },
  {
    "slug": "code-review",
    "githubUrl": "https://github.com/org/code-review",
    "agents": ["reviewer"]
  }
]`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleRegistry)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	desc, err := c.Lookup(context.Background(), "support-triage")
	require.NoError(t, err)
	require.Equal(t, "https://github.com/org/support-triage", desc.GitHubURL)
	require.Equal(t, []string{"triager"}, desc.Agents)
	require.Equal(t, []string{"zendesk"}, desc.MCP)
}

func TestLookupNotFoundListsValidSlugs(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, sampleRegistry)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
	require.Contains(t, err.Error(), "code-review")
	require.Contains(t, err.Error(), "support-triage")
}

func TestListRejectsMalformedEntries(t *testing.T) {
	// Entry missing the required githubUrl must fail schema validation.
	srv := newTestServer(t, http.StatusOK, `[{"slug": "broken"}]`)

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema validation")
}

func TestListServerError(t *testing.T) {
	srv := newTestServer(t, http.StatusInternalServerError, "boom")

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.List(context.Background())
	require.Error(t, err)
	require.False(t, IsNotFound(err))
}

func TestNewClientEmptyURL(t *testing.T) {
	_, err := NewClient("  ")
	require.Error(t, err)
}
