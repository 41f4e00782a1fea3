/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package registry implements the client for the template registry: an HTTP
// endpoint serving a JSON array of template descriptors, queried by exact
// slug match.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// descriptorSchema is the shape every registry entry must satisfy before it
// is trusted. Malformed entries fail the whole fetch rather than being
// silently dropped, so registry corruption surfaces loudly.
const descriptorSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["slug", "githubUrl"],
    "properties": {
      "slug": {"type": "string", "minLength": 1},
      "title": {"type": "string"},
      "description": {"type": "string"},
      "githubUrl": {"type": "string", "minLength": 1},
      "tags": {"type": "array", "items": {"type": "string"}},
      "agents": {"type": "array", "items": {"type": "string"}},
      "workflows": {"type": "array", "items": {"type": "string"}},
      "tools": {"type": "array", "items": {"type": "string"}},
      "mcp": {"type": "array", "items": {"type": "string"}}
    }
  }
}`

// Descriptor is one template entry in the registry.
type Descriptor struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	GitHubURL   string   `json:"githubUrl"`
	Tags        []string `json:"tags"`
	Agents      []string `json:"agents"`
	Workflows   []string `json:"workflows"`
	Tools       []string `json:"tools"`
	MCP         []string `json:"mcp"`
}

// NotFoundError reports that a slug has no registry entry. It carries the
// valid slugs so callers can surface them in the terminal error message.
type NotFoundError struct {
	Slug  string
	Valid []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %q (valid slugs: %s)", e.Slug, strings.Join(e.Valid, ", "))
}

// IsNotFound reports whether err is a registry NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for registry fetches.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client fetches template descriptors from a registry endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *jsonschema.Schema
}

// NewClient constructs a registry client for the given endpoint URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("registry URL cannot be empty")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("descriptors.json", strings.NewReader(descriptorSchema)); err != nil {
		return nil, fmt.Errorf("adding descriptor schema: %w", err)
	}
	schema, err := compiler.Compile("descriptors.json")
	if err != nil {
		return nil, fmt.Errorf("compiling descriptor schema: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		schema:     schema,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches every descriptor from the registry.
func (c *Client) List(ctx context.Context) ([]Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading registry response: %w", err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("registry response failed schema validation: %w", err)
	}

	var descriptors []Descriptor
	if err := json.Unmarshal(body, &descriptors); err != nil {
		return nil, fmt.Errorf("decoding registry descriptors: %w", err)
	}

	clog.FromContext(ctx).Debugf("Fetched %d template descriptors", len(descriptors))
	return descriptors, nil
}

// Lookup returns the descriptor whose slug matches exactly. A miss returns
// a NotFoundError carrying the valid slugs; this is a terminal error for
// the pipeline, never retried.
func (c *Client) Lookup(ctx context.Context, slug string) (*Descriptor, error) {
	descriptors, err := c.List(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]string, 0, len(descriptors))
	for i := range descriptors {
		if descriptors[i].Slug == slug {
			return &descriptors[i], nil
		}
		valid = append(valid, descriptors[i].Slug)
	}
	sort.Strings(valid)
	return nil, &NotFoundError{Slug: slug, Valid: valid}
}
