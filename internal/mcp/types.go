// Package mcp provides a minimal Model Context Protocol client and
// the bridge that exposes remote MCP tools through the tool registry.
package mcp

import (
	"fmt"
	"time"
)

// ServerConfig describes one remote MCP server.
type ServerConfig struct {
	// Name identifies the server; it prefixes tool names on collision
	// and keys the session trust set.
	Name string `yaml:"name" json:"name"`

	// URL is the JSON-RPC endpoint.
	URL string `yaml:"url" json:"url"`

	// Headers are sent with every request, e.g. authorization.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Timeout bounds each request. Zero means 30s.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// TrustAll skips confirmation for every tool on this server.
	TrustAll bool `yaml:"trust,omitempty" json:"trust,omitempty"`
}

// Validate checks the configuration.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server name is required")
	}
	if c.URL == "" {
		return fmt.Errorf("mcp server %s: url is required", c.Name)
	}
	return nil
}

// ToolDef is a tool as the server declares it.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// ContentItem is one piece of a tool call result.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the server's response to a tool call.
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}
