// Package genai defines the conversation data model shared by the
// orchestration core, the tool layer, and the gateway: tagged content
// parts, tool call records, confirmation details, and usage metadata.
package genai

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// Content is a single conversation turn.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a tagged union. Exactly one variant is populated:
// text (optionally flagged as a thought), a function call, a function
// response, or inline binary data. Marshalling emits only the active
// variant; unmarshalling rejects frames that carry none or an unknown
// key.
type Part struct {
	// Text holds the text or thought-summary body.
	Text string
	// Thought marks Text as a model-internal reasoning summary.
	Thought bool

	FunctionCall     *FunctionCall
	FunctionResponse *FunctionResponse
	InlineData       *Blob
}

// FunctionCall is the model requesting a tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response"`
}

// Blob is inline binary data, e.g. an image the model produced.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// NewTextPart returns a plain text part.
func NewTextPart(text string) Part {
	return Part{Text: text}
}

// NewThoughtPart returns a thought-summary part.
func NewThoughtPart(text string) Part {
	return Part{Text: text, Thought: true}
}

// NewFunctionCallPart wraps a function call.
func NewFunctionCallPart(fc *FunctionCall) Part {
	return Part{FunctionCall: fc}
}

// NewFunctionResponsePart wraps a function response.
func NewFunctionResponsePart(fr *FunctionResponse) Part {
	return Part{FunctionResponse: fr}
}

// NewInlineDataPart wraps inline binary data.
func NewInlineDataPart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

// IsText reports whether the part is a non-thought text part.
func (p Part) IsText() bool {
	return p.FunctionCall == nil && p.FunctionResponse == nil && p.InlineData == nil && !p.Thought
}

// IsThought reports whether the part is a thought summary.
func (p Part) IsThought() bool {
	return p.Thought
}

type textPartJSON struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

// MarshalJSON emits the active variant only.
func (p Part) MarshalJSON() ([]byte, error) {
	switch {
	case p.FunctionCall != nil:
		return json.Marshal(map[string]*FunctionCall{"functionCall": p.FunctionCall})
	case p.FunctionResponse != nil:
		return json.Marshal(map[string]*FunctionResponse{"functionResponse": p.FunctionResponse})
	case p.InlineData != nil:
		return json.Marshal(map[string]*Blob{"inlineData": p.InlineData})
	default:
		return json.Marshal(textPartJSON{Text: p.Text, Thought: p.Thought})
	}
}

// UnmarshalJSON decodes one variant and rejects unknown part shapes.
// Silently dropping unrecognized variants would corrupt history, so a
// part with no known key is an error.
func (p *Part) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := 0
	for key := range raw {
		switch key {
		case "text", "thought", "functionCall", "functionResponse", "inlineData":
			known++
		default:
			return fmt.Errorf("part: unknown variant key %q", key)
		}
	}
	if known == 0 {
		return fmt.Errorf("part: no variant present")
	}

	*p = Part{}
	if v, ok := raw["functionCall"]; ok {
		p.FunctionCall = &FunctionCall{}
		return json.Unmarshal(v, p.FunctionCall)
	}
	if v, ok := raw["functionResponse"]; ok {
		p.FunctionResponse = &FunctionResponse{}
		return json.Unmarshal(v, p.FunctionResponse)
	}
	if v, ok := raw["inlineData"]; ok {
		p.InlineData = &Blob{}
		return json.Unmarshal(v, p.InlineData)
	}
	if v, ok := raw["text"]; ok {
		if err := json.Unmarshal(v, &p.Text); err != nil {
			return err
		}
	}
	if v, ok := raw["thought"]; ok {
		if err := json.Unmarshal(v, &p.Thought); err != nil {
			return err
		}
	}
	return nil
}

// UsageMetadata is the token accounting attached to a model response.
type UsageMetadata struct {
	PromptTokenCount     int   `json:"promptTokenCount"`
	CandidatesTokenCount int   `json:"candidatesTokenCount"`
	TotalTokenCount      int   `json:"totalTokenCount"`
	APITimeMs            int64 `json:"apiTimeMs,omitempty"`
}
