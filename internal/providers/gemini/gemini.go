// Package gemini implements the content generator over the Google
// Gen AI SDK, translating between the conversation core's content
// model and the Gemini wire format.
package gemini

import (
	"context"
	"errors"
	"fmt"

	sdk "google.golang.org/genai"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/backoff"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// Config holds the provider settings.
type Config struct {
	// APIKey authenticates against the Gemini API.
	APIKey string
}

// Generator implements agent.ContentGenerator for Gemini models. It
// is safe for concurrent use; each stream call is independent.
type Generator struct {
	client *sdk.Client
}

// New creates a Gemini generator.
func New(ctx context.Context, config Config) (*Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := sdk.NewClient(ctx, &sdk.ClientConfig{
		APIKey:  config.APIKey,
		Backend: sdk.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Generator{client: client}, nil
}

// GenerateContent performs one non-streamed model call.
func (g *Generator) GenerateContent(ctx context.Context, req agent.GenerateRequest) (*agent.GenerateResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toSDKContents(req.Contents), buildConfig(req))
	if err != nil {
		return nil, wrapError(err)
	}

	out := &agent.GenerateResponse{Usage: fromSDKUsage(resp.UsageMetadata)}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		out.Content = fromSDKContent(resp.Candidates[0].Content)
	}
	return out, nil
}

// GenerateContentStream performs a streamed model call. The returned
// channel closes when the stream ends; a chunk with Err set is
// terminal.
func (g *Generator) GenerateContentStream(ctx context.Context, req agent.GenerateRequest) (<-chan agent.StreamChunk, error) {
	chunks := make(chan agent.StreamChunk)

	go func() {
		defer close(chunks)

		stream := g.client.Models.GenerateContentStream(ctx, req.Model, toSDKContents(req.Contents), buildConfig(req))
		for resp, err := range stream {
			if err != nil {
				chunks <- agent.StreamChunk{Err: wrapError(err)}
				return
			}
			if resp == nil {
				continue
			}

			chunk := agent.StreamChunk{Usage: fromSDKUsage(resp.UsageMetadata)}
			for _, candidate := range resp.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					chunk.Parts = append(chunk.Parts, fromSDKPart(part))
				}
			}
			if len(chunk.Parts) == 0 && chunk.Usage == nil {
				continue
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}

// CountTokens asks the API for the exact token count of contents.
func (g *Generator) CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error) {
	resp, err := g.client.Models.CountTokens(ctx, model, toSDKContents(contents), nil)
	if err != nil {
		return 0, wrapError(err)
	}
	return int(resp.TotalTokens), nil
}

// EmbedContent embeds each text and returns the vectors in order.
func (g *Generator) EmbedContent(ctx context.Context, model string, texts []string) ([][]float32, error) {
	contents := make([]*sdk.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &sdk.Content{Parts: []*sdk.Part{{Text: text}}})
	}

	resp, err := g.client.Models.EmbedContent(ctx, model, contents, nil)
	if err != nil {
		return nil, wrapError(err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, emb.Values)
	}
	return out, nil
}

func buildConfig(req agent.GenerateRequest) *sdk.GenerateContentConfig {
	config := &sdk.GenerateContentConfig{}

	if req.SystemInstruction != "" {
		config.SystemInstruction = &sdk.Content{
			Parts: []*sdk.Part{{Text: req.SystemInstruction}},
		}
	}

	if len(req.Tools) > 0 {
		declarations := make([]*sdk.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			declarations = append(declarations, &sdk.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toSDKSchema(tool.Parameters),
			})
		}
		config.Tools = []*sdk.Tool{{FunctionDeclarations: declarations}}
	}

	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSDKSchema(req.ResponseSchema)
	}

	return config
}

func toSDKContents(contents []genai.Content) []*sdk.Content {
	out := make([]*sdk.Content, 0, len(contents))
	for i := range contents {
		out = append(out, toSDKContent(&contents[i]))
	}
	return out
}

func toSDKContent(content *genai.Content) *sdk.Content {
	role := sdk.RoleUser
	if content.Role == genai.RoleModel {
		role = sdk.RoleModel
	}
	// Function-role turns travel as user turns; the API has no
	// separate function role.

	parts := make([]*sdk.Part, 0, len(content.Parts))
	for i := range content.Parts {
		parts = append(parts, toSDKPart(&content.Parts[i]))
	}
	return &sdk.Content{Role: role, Parts: parts}
}

func toSDKPart(part *genai.Part) *sdk.Part {
	switch {
	case part.FunctionCall != nil:
		return &sdk.Part{FunctionCall: &sdk.FunctionCall{
			ID:   part.FunctionCall.ID,
			Name: part.FunctionCall.Name,
			Args: part.FunctionCall.Args,
		}}
	case part.FunctionResponse != nil:
		return &sdk.Part{FunctionResponse: &sdk.FunctionResponse{
			ID:       part.FunctionResponse.ID,
			Name:     part.FunctionResponse.Name,
			Response: part.FunctionResponse.Response,
		}}
	case part.InlineData != nil:
		return &sdk.Part{InlineData: &sdk.Blob{
			MIMEType: part.InlineData.MIMEType,
			Data:     part.InlineData.Data,
		}}
	default:
		return &sdk.Part{Text: part.Text, Thought: part.Thought}
	}
}

func fromSDKContent(content *sdk.Content) genai.Content {
	out := genai.Content{Role: genai.Role(content.Role)}
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		out.Parts = append(out.Parts, fromSDKPart(part))
	}
	return out
}

func fromSDKPart(part *sdk.Part) genai.Part {
	switch {
	case part.FunctionCall != nil:
		return genai.NewFunctionCallPart(&genai.FunctionCall{
			ID:   part.FunctionCall.ID,
			Name: part.FunctionCall.Name,
			Args: part.FunctionCall.Args,
		})
	case part.FunctionResponse != nil:
		return genai.NewFunctionResponsePart(&genai.FunctionResponse{
			ID:       part.FunctionResponse.ID,
			Name:     part.FunctionResponse.Name,
			Response: part.FunctionResponse.Response,
		})
	case part.InlineData != nil:
		return genai.NewInlineDataPart(part.InlineData.MIMEType, part.InlineData.Data)
	case part.Thought:
		return genai.NewThoughtPart(part.Text)
	default:
		return genai.NewTextPart(part.Text)
	}
}

func fromSDKUsage(usage *sdk.GenerateContentResponseUsageMetadata) *genai.UsageMetadata {
	if usage == nil {
		return nil
	}
	return &genai.UsageMetadata{
		PromptTokenCount:     int(usage.PromptTokenCount),
		CandidatesTokenCount: int(usage.CandidatesTokenCount),
		TotalTokenCount:      int(usage.TotalTokenCount),
	}
}

// toSDKSchema converts the subset of JSON Schema the core emits into
// the SDK's typed schema: object/string types, enum, properties,
// required, items, and description.
func toSDKSchema(schema map[string]any) *sdk.Schema {
	if len(schema) == 0 {
		return nil
	}
	out := &sdk.Schema{}

	if t, ok := schema["type"].(string); ok {
		switch t {
		case "object":
			out.Type = sdk.TypeObject
		case "array":
			out.Type = sdk.TypeArray
		case "string":
			out.Type = sdk.TypeString
		case "number":
			out.Type = sdk.TypeNumber
		case "integer":
			out.Type = sdk.TypeInteger
		case "boolean":
			out.Type = sdk.TypeBoolean
		}
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*sdk.Schema, len(props))
		for name, sub := range props {
			if subMap, ok := sub.(map[string]any); ok {
				out.Properties[name] = toSDKSchema(subMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toSDKSchema(items)
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if required, ok := schema["required"].([]string); ok {
		out.Required = append(out.Required, required...)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	if enum, ok := schema["enum"].([]string); ok {
		out.Enum = append(out.Enum, enum...)
	}

	return out
}

// wrapError maps SDK failures onto HTTPError so the retry policy can
// classify them by status.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr sdk.APIError
	if errors.As(err, &apiErr) {
		return &backoff.HTTPError{
			Status:  apiErr.Code,
			Message: apiErr.Message,
			Err:     err,
		}
	}
	return err
}
