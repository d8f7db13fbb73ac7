package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// discoveredTool executes through the user's tool-call command: the
// tool name is passed as an argument and the args as JSON on stdin.
type discoveredTool struct {
	decl        FunctionDeclaration
	callCommand string
}

func (t *discoveredTool) Name() string        { return t.decl.Name }
func (t *discoveredTool) Description() string { return t.decl.Description }

func (t *discoveredTool) Schema() map[string]any { return t.decl.Parameters }

func (t *discoveredTool) ValidateParams(args map[string]any) error {
	return ValidateParams(t.decl.Parameters, args)
}

func (t *discoveredTool) Summary(args map[string]any) string {
	return fmt.Sprintf("%s(%d args)", t.decl.Name, len(args))
}

// ShouldConfirm always asks: discovered commands run arbitrary local
// executables.
func (t *discoveredTool) ShouldConfirm(_ context.Context, _ map[string]any) (*genai.ConfirmationDetails, error) {
	return &genai.ConfirmationDetails{
		Kind:        genai.ConfirmExec,
		Title:       fmt.Sprintf("Run discovered tool %q", t.decl.Name),
		Command:     fmt.Sprintf("%s %s", t.callCommand, t.decl.Name),
		RootCommand: firstWord(t.callCommand),
	}, nil
}

func (t *discoveredTool) Execute(ctx context.Context, args map[string]any, signal *cancel.Signal, _ func(string)) (*ToolResult, error) {
	if t.callCommand == "" {
		return nil, fmt.Errorf("no tool call command configured for %q", t.decl.Name)
	}
	if signal != nil && signal.IsSet() {
		return nil, fmt.Errorf("cancelled")
	}

	input, err := marshalArgs(args)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("%s %s", t.callCommand, t.decl.Name))
	cmd.Stdin = bytes.NewReader(input)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("tool command failed: %w", err)
	}

	output := string(out)
	return &ToolResult{LLMContent: output, Display: output}, nil
}

func marshalArgs(args map[string]any) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal tool args: %w", err)
	}
	return raw, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}
