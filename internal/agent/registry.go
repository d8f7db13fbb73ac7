package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	"github.com/lodestone-ai/lodestone/internal/observability"
)

// Registry maps tool names to implementations. Registration is
// idempotent by name: re-registering replaces the previous tool and
// logs the override.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *observability.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		r.logger.Warn(context.Background(), "tool re-registered, replacing previous definition",
			"tool", tool.Name())
	}
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the function declarations for a model request,
// in name order.
func (r *Registry) Declarations() []FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]FunctionDeclaration, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		decls = append(decls, FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return decls
}

// DiscoverFromCommand runs a user-provided discovery command that
// prints function declarations as JSON (either a bare array or
// wrapped in {"function_declarations": [...]} groups) and registers a
// command-backed tool for each.
func (r *Registry) DiscoverFromCommand(ctx context.Context, discoveryCommand, callCommand string) error {
	if discoveryCommand == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", discoveryCommand)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("tool discovery command failed: %w", err)
	}

	decls, err := parseDiscoveredDeclarations(out)
	if err != nil {
		return fmt.Errorf("tool discovery output: %w", err)
	}

	for _, decl := range decls {
		r.Register(&discoveredTool{decl: decl, callCommand: callCommand})
	}
	r.logger.Info(ctx, "discovered tools from command", "count", len(decls))
	return nil
}

func parseDiscoveredDeclarations(out []byte) ([]FunctionDeclaration, error) {
	var decls []FunctionDeclaration
	if err := json.Unmarshal(out, &decls); err == nil {
		return decls, nil
	}

	var grouped []struct {
		FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
	}
	if err := json.Unmarshal(out, &grouped); err != nil {
		return nil, err
	}
	for _, g := range grouped {
		decls = append(decls, g.FunctionDeclarations...)
	}
	return decls, nil
}
