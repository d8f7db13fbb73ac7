package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// ListDirectoryTool lists the entries directly inside a directory,
// directories first, honoring the project's ignore files.
type ListDirectoryTool struct {
	root string
}

// NewListDirectoryTool creates the tool rooted at the project dir.
func NewListDirectoryTool(root string) *ListDirectoryTool {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &ListDirectoryTool{root: abs}
}

func (t *ListDirectoryTool) Name() string { return "list_directory" }

func (t *ListDirectoryTool) Description() string {
	return "Lists the names of files and subdirectories directly within a specified directory path."
}

func (t *ListDirectoryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The absolute path to the directory to list.",
			},
			"respect_git_ignore": map[string]any{
				"type":        "boolean",
				"description": "Whether to respect ignore files. Defaults to true.",
			},
		},
		"required": []any{"path"},
	}
}

func (t *ListDirectoryTool) ValidateParams(args map[string]any) error {
	if err := agent.ValidateParams(t.Schema(), args); err != nil {
		return err
	}
	path, _ := args["path"].(string)
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	if !withinRoot(t.root, path) {
		return fmt.Errorf("path must be within the root directory (%s): %s", t.root, path)
	}
	return nil
}

func (t *ListDirectoryTool) Summary(args map[string]any) string {
	path, _ := args["path"].(string)
	if rel, err := filepath.Rel(t.root, path); err == nil {
		return rel
	}
	return path
}

// ShouldConfirm never asks: listing is read-only.
func (t *ListDirectoryTool) ShouldConfirm(context.Context, map[string]any) (*genai.ConfirmationDetails, error) {
	return nil, nil
}

func (t *ListDirectoryTool) Execute(_ context.Context, args map[string]any, signal *cancel.Signal, _ func(string)) (*agent.ToolResult, error) {
	if signal != nil && signal.IsSet() {
		return nil, fmt.Errorf("cancelled")
	}

	path, _ := args["path"].(string)
	respectIgnore := true
	if v, ok := args["respect_git_ignore"].(bool); ok {
		respectIgnore = v
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		msg := fmt.Sprintf("Error: Directory not found: %s", path)
		return &agent.ToolResult{LLMContent: msg, Display: "Error: Directory not found."}, nil
	}

	var matcher *IgnoreMatcher
	if respectIgnore {
		matcher = LoadIgnoreMatcher(t.root)
	}

	type entry struct {
		name  string
		isDir bool
	}
	var kept []entry
	ignored := 0
	for _, e := range entries {
		if matcher != nil {
			rel, err := filepath.Rel(t.root, filepath.Join(path, e.Name()))
			if err == nil && matcher.Match(rel) {
				ignored++
				continue
			}
		}
		kept = append(kept, entry{name: e.Name(), isDir: e.IsDir()})
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].isDir != kept[j].isDir {
			return kept[i].isDir
		}
		return kept[i].name < kept[j].name
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Directory listing for %s:\n", path)
	for _, e := range kept {
		if e.isDir {
			b.WriteString("[DIR] ")
		}
		b.WriteString(e.name)
		b.WriteString("\n")
	}

	display := fmt.Sprintf("Listed %d item(s).", len(kept))
	content := strings.TrimRight(b.String(), "\n")
	if ignored > 0 {
		content += fmt.Sprintf("\n\n(%d items were git-ignored)", ignored)
		display += fmt.Sprintf(" (%d git-ignored)", ignored)
	}

	return &agent.ToolResult{LLMContent: content, Display: display}, nil
}
