package tools

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// maxTextLines caps what an unwindowed read feeds the model.
const maxTextLines = 2000

// ReadFileTool reads a file, handling text (with optional line
// windowing) and binary content (returned as inline data).
type ReadFileTool struct {
	root string
}

// NewReadFileTool creates the tool rooted at the project dir.
func NewReadFileTool(root string) *ReadFileTool {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &ReadFileTool{root: abs}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Reads and returns the content of a specified file. Handles both text and binary files."
}

func (t *ReadFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"absolute_path": map[string]any{
				"type":        "string",
				"description": "The absolute path to the file to read.",
				"pattern":     "^/",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Optional: 0-based line number to start reading from.",
				"minimum":     0,
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Optional: maximum number of lines to read.",
				"minimum":     1,
			},
		},
		"required": []any{"absolute_path"},
	}
}

func (t *ReadFileTool) ValidateParams(args map[string]any) error {
	if err := agent.ValidateParams(t.Schema(), args); err != nil {
		return err
	}
	path, _ := args["absolute_path"].(string)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("file path must be absolute: %s", path)
	}
	if !withinRoot(t.root, path) {
		return fmt.Errorf("file path must be within the root directory (%s): %s", t.root, path)
	}
	if rel, err := filepath.Rel(t.root, path); err == nil {
		if LoadIgnoreMatcher(t.root).Match(rel) {
			return fmt.Errorf("file path %q is ignored", rel)
		}
	}
	return nil
}

func (t *ReadFileTool) Summary(args map[string]any) string {
	path, _ := args["absolute_path"].(string)
	if rel, err := filepath.Rel(t.root, path); err == nil {
		return rel
	}
	return path
}

// ShouldConfirm never asks: reading is read-only.
func (t *ReadFileTool) ShouldConfirm(context.Context, map[string]any) (*genai.ConfirmationDetails, error) {
	return nil, nil
}

func (t *ReadFileTool) Execute(_ context.Context, args map[string]any, signal *cancel.Signal, _ func(string)) (*agent.ToolResult, error) {
	if signal != nil && signal.IsSet() {
		return nil, fmt.Errorf("cancelled")
	}

	path, _ := args["absolute_path"].(string)
	info, err := os.Stat(path)
	if err != nil {
		return &agent.ToolResult{LLMContent: "Error: File not found.", Display: "Error: File not found."}, nil
	}
	if info.IsDir() {
		return &agent.ToolResult{LLMContent: "Error: Path is a directory.", Display: "Error: Path is a directory."}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if isBinary(data) {
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		part := genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
		return &agent.ToolResult{
			LLMContent: part,
			Display:    fmt.Sprintf("Read binary content (%s) from %s", mimeType, t.Summary(args)),
		}, nil
	}

	content, display := windowText(string(data), args)
	return &agent.ToolResult{
		LLMContent: content,
		Display:    fmt.Sprintf("%s %s", display, t.Summary(args)),
	}, nil
}

func windowText(content string, args map[string]any) (string, string) {
	lines := strings.Split(content, "\n")
	total := len(lines)

	offset, hasOffset := intArg(args, "offset")
	limit, hasLimit := intArg(args, "limit")
	if hasOffset && hasLimit {
		start := min(offset, total)
		end := min(offset+limit, total)
		return strings.Join(lines[start:end], "\n"),
			fmt.Sprintf("Read lines %d-%d of %d from", start+1, end, total)
	}

	if total > maxTextLines {
		return strings.Join(lines[:maxTextLines], "\n") + "\n... (file truncated)",
			fmt.Sprintf("Read %d lines from", total)
	}
	return content, fmt.Sprintf("Read %d lines from", total)
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) != -1
}

// withinRoot reports whether path is root or inside it.
func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
