// Package agent implements the conversation core: the content
// generator and tool capabilities, the tool registry and scheduler,
// the next-speaker check, and the turn-loop orchestrator.
package agent

import (
	"context"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// FunctionDeclaration describes a callable tool to the model.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// GenerateRequest is a single model invocation.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Contents          []genai.Content
	Tools             []FunctionDeclaration

	// ResponseSchema forces a JSON response matching the schema, used
	// for structured calls like the next-speaker check.
	ResponseSchema map[string]any
}

// GenerateResponse is a complete (non-streamed) model response.
type GenerateResponse struct {
	Content genai.Content
	Usage   *genai.UsageMetadata
}

// StreamChunk is one increment of a streamed response. A chunk with
// Err set is terminal; Usage arrives on the final chunk.
type StreamChunk struct {
	Parts []genai.Part
	Usage *genai.UsageMetadata
	Err   error
}

// ContentGenerator abstracts the model provider. Implementations
// translate to a provider wire format and surface HTTP-ish failures
// as *backoff.HTTPError so the retry policy can classify them.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	GenerateContentStream(ctx context.Context, req GenerateRequest) (<-chan StreamChunk, error)
	CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error)
	EmbedContent(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// ResponseText concatenates the non-thought text parts of a response.
func ResponseText(resp *GenerateResponse) string {
	if resp == nil {
		return ""
	}
	var out string
	for _, p := range resp.Content.Parts {
		if p.IsText() {
			out += p.Text
		}
	}
	return out
}
