package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// ToolCaller is the slice of the client the bridge needs.
type ToolCaller interface {
	ServerName() string
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
}

// ToolBridge exposes one remote MCP tool through the agent Tool
// capability, with its name and schema sanitized for the model.
type ToolBridge struct {
	caller   ToolCaller
	def      ToolDef
	safeName string
	schema   map[string]any
	trusted  bool
}

// NewToolBridge wraps a remote tool under a precomputed safe name.
func NewToolBridge(caller ToolCaller, def ToolDef, safeName string, trusted bool) *ToolBridge {
	return &ToolBridge{
		caller:   caller,
		def:      def,
		safeName: safeName,
		schema:   SanitizeSchema(def.InputSchema),
		trusted:  trusted,
	}
}

func (b *ToolBridge) Name() string { return b.safeName }

func (b *ToolBridge) Description() string {
	desc := strings.TrimSpace(b.def.Description)
	display := DisplayToolName(b.caller.ServerName(), b.def.Name)
	if desc == "" {
		return fmt.Sprintf("MCP tool %s", display)
	}
	return fmt.Sprintf("MCP tool %s: %s", display, desc)
}

func (b *ToolBridge) Schema() map[string]any {
	if len(b.schema) == 0 {
		return map[string]any{"type": "object"}
	}
	return b.schema
}

func (b *ToolBridge) ValidateParams(args map[string]any) error {
	return agent.ValidateParams(b.schema, args)
}

func (b *ToolBridge) Summary(args map[string]any) string {
	return fmt.Sprintf("%s(%d args)", DisplayToolName(b.caller.ServerName(), b.def.Name), len(args))
}

// ShouldConfirm asks for approval unless the server is configured
// trusted. The scheduler's session trust set can further short-
// circuit this through the returned server/tool identity.
func (b *ToolBridge) ShouldConfirm(_ context.Context, _ map[string]any) (*genai.ConfirmationDetails, error) {
	if b.trusted {
		return nil, nil
	}
	return &genai.ConfirmationDetails{
		Kind:       genai.ConfirmMCP,
		Title:      fmt.Sprintf("Run remote tool %s", DisplayToolName(b.caller.ServerName(), b.def.Name)),
		ServerName: b.caller.ServerName(),
		ToolName:   b.def.Name,
	}, nil
}

func (b *ToolBridge) Execute(ctx context.Context, args map[string]any, signal *cancel.Signal, _ func(string)) (*agent.ToolResult, error) {
	if signal != nil && signal.IsSet() {
		return nil, fmt.Errorf("cancelled")
	}

	result, err := b.caller.CallTool(ctx, b.def.Name, args)
	if err != nil {
		return nil, err
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("remote tool failed: %s", text)
	}
	return &agent.ToolResult{LLMContent: text, Display: text}, nil
}

func flattenContent(items []ContentItem) string {
	var parts []string
	for _, item := range items {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// DiscoverTools lists a server's tools and registers a bridge for
// each, prefixing with the server name when the sanitized name would
// collide with an already-registered tool.
func DiscoverTools(ctx context.Context, client *Client, config ServerConfig, registry *agent.Registry, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	defs, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("discover tools from %s: %w", config.Name, err)
	}

	for _, def := range defs {
		name := SafeToolName(def.Name)
		if _, taken := registry.Get(name); taken {
			name = PrefixedToolName(config.Name, def.Name)
		}
		registry.Register(NewToolBridge(client, def, name, config.TrustAll))
	}
	logger.Info(ctx, "discovered mcp tools", "server", config.Name, "count", len(defs))
	return nil
}
