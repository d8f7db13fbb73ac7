package agent

import (
	"context"
	"fmt"

	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// ToolResult is what a tool execution produces: content for the
// model and a human-readable display form.
type ToolResult struct {
	// LLMContent is a string, a genai.Part, or a []genai.Part that
	// becomes the functionResponse payload.
	LLMContent any
	// Display is shown to the user, e.g. a diff or truncated output.
	Display string
}

// Tool is the capability every local or remote tool satisfies.
type Tool interface {
	Name() string
	Description() string
	// Schema is the JSON schema of the tool's parameters.
	Schema() map[string]any

	// ValidateParams rejects malformed args before scheduling.
	ValidateParams(args map[string]any) error

	// Summary renders a one-line description of a specific invocation
	// for display purposes.
	Summary(args map[string]any) string

	// ShouldConfirm returns the confirmation to present to the user,
	// or nil when the call can run without approval.
	ShouldConfirm(ctx context.Context, args map[string]any) (*genai.ConfirmationDetails, error)

	// Execute runs the tool. Long-running tools must observe signal
	// and may stream live output through onOutput.
	Execute(ctx context.Context, args map[string]any, signal *cancel.Signal, onOutput func(string)) (*ToolResult, error)
}

// ToFunctionResponseParts normalizes a tool's LLMContent into
// functionResponse parts keyed by the originating call.
func ToFunctionResponseParts(toolName, callID string, llmContent any) []genai.Part {
	wrap := func(output string) []genai.Part {
		return []genai.Part{genai.NewFunctionResponsePart(&genai.FunctionResponse{
			ID:       callID,
			Name:     toolName,
			Response: map[string]any{"output": output},
		})}
	}

	switch v := llmContent.(type) {
	case nil:
		return wrap("Tool execution succeeded.")
	case string:
		return wrap(v)
	case genai.Part:
		return []genai.Part{v}
	case *genai.Part:
		return []genai.Part{*v}
	case []genai.Part:
		return v
	default:
		return wrap(fmt.Sprintf("%v", v))
	}
}

// ErrorResponse builds the terminal response for a failed call. The
// error rides in the functionResponse payload so the model observes
// the failure on its next turn.
func ErrorResponse(req genai.ToolCallRequest, err error) *genai.ToolCallResponse {
	msg := err.Error()
	return &genai.ToolCallResponse{
		CallID: req.CallID,
		ResponseParts: []genai.Part{genai.NewFunctionResponsePart(&genai.FunctionResponse{
			ID:       req.CallID,
			Name:     req.Name,
			Response: map[string]any{"error": msg},
		})},
		DisplayResult: msg,
		Error:         msg,
	}
}
