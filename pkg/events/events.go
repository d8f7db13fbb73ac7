// Package events defines the typed stream events the core emits to
// the front-end and the envelopes they travel in.
package events

import "github.com/lodestone-ai/lodestone/pkg/genai"

// Type enumerates the event kinds a session stream can carry.
type Type string

const (
	TypeContent              Type = "content"
	TypeThought              Type = "thought"
	TypeToolCallRequest      Type = "toolCallRequest"
	TypeToolCallConfirmation Type = "toolCallConfirmation"
	TypeToolCallResponse     Type = "toolCallResponse"
	TypeToolLog              Type = "toolLog"
	TypeUserCancelled        Type = "userCancelled"
	TypeError                Type = "error"
	TypeChatCompressed       Type = "chatCompressed"
	TypeUsageMetadata        Type = "usageMetadata"
	TypeTurnComplete         Type = "turnComplete"
)

// Event is the wire envelope: a type tag plus a type-specific value.
type Event struct {
	Type  Type `json:"type"`
	Value any  `json:"value,omitempty"`
}

// Thought is the payload of a thought event, parsed from the model's
// "**Subject** description" thought text.
type Thought struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// ToolCallConfirmation asks the front-end to approve a pending call.
type ToolCallConfirmation struct {
	Request genai.ToolCallRequest     `json:"request"`
	Details genai.ConfirmationDetails `json:"details"`
}

// ToolLog is a live-output chunk from an executing tool.
type ToolLog struct {
	CallID string `json:"callId"`
	Output string `json:"output"`
}

// ChatCompressed reports a completed history compression.
type ChatCompressed struct {
	OriginalTokenCount int `json:"originalTokenCount"`
	NewTokenCount      int `json:"newTokenCount"`
}

// ErrorDetail is the value of an error event.
type ErrorDetail struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// Error wraps ErrorDetail to match the {error:{...}} envelope.
type Error struct {
	Error ErrorDetail `json:"error"`
}

// Content builds a text-delta event.
func Content(delta string) Event {
	return Event{Type: TypeContent, Value: delta}
}

// NewThought builds a thought event.
func NewThought(subject, description string) Event {
	return Event{Type: TypeThought, Value: Thought{Subject: subject, Description: description}}
}

// NewError builds an error event.
func NewError(message, status string) Event {
	return Event{Type: TypeError, Value: Error{Error: ErrorDetail{Message: message, Status: status}}}
}
