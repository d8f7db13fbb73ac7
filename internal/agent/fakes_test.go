package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/eventbus"
	"github.com/lodestone-ai/lodestone/pkg/events"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// fakeGenerator scripts model behavior for tests. Streamed calls pop
// from streams in order; the last script repeats once exhausted.
type fakeGenerator struct {
	mu      sync.Mutex
	streams [][]StreamChunk
	calls   int

	// generate handles non-streamed calls (next-speaker checks and
	// summarization); nil fails the call.
	generate func(req GenerateRequest) (*GenerateResponse, error)

	tokens int
}

func (g *fakeGenerator) GenerateContent(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if g.generate == nil {
		return nil, errors.New("no generate script")
	}
	return g.generate(req)
}

func (g *fakeGenerator) GenerateContentStream(context.Context, GenerateRequest) (<-chan StreamChunk, error) {
	g.mu.Lock()
	i := g.calls
	g.calls++
	if i >= len(g.streams) {
		i = len(g.streams) - 1
	}
	var script []StreamChunk
	if i >= 0 {
		script = g.streams[i]
	}
	g.mu.Unlock()

	ch := make(chan StreamChunk, len(script))
	for _, chunk := range script {
		ch <- chunk
	}
	close(ch)
	return ch, nil
}

func (g *fakeGenerator) CountTokens(context.Context, string, []genai.Content) (int, error) {
	return g.tokens, nil
}

func (g *fakeGenerator) EmbedContent(context.Context, string, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func textResponse(text string) *GenerateResponse {
	return &GenerateResponse{Content: genai.Content{
		Role:  genai.RoleModel,
		Parts: []genai.Part{genai.NewTextPart(text)},
	}}
}

// fakeTool is a scriptable tool implementation.
type fakeTool struct {
	name       string
	schema     map[string]any
	confirm    *genai.ConfirmationDetails
	confirmErr error
	execute    func(ctx context.Context, args map[string]any, signal *cancel.Signal, onOutput func(string)) (*ToolResult, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "test tool " + t.name }
func (t *fakeTool) Schema() map[string]any {
	return t.schema
}
func (t *fakeTool) ValidateParams(args map[string]any) error {
	return ValidateParams(t.schema, args)
}
func (t *fakeTool) Summary(args map[string]any) string {
	return fmt.Sprintf("%s(%d args)", t.name, len(args))
}
func (t *fakeTool) ShouldConfirm(context.Context, map[string]any) (*genai.ConfirmationDetails, error) {
	if t.confirmErr != nil {
		return nil, t.confirmErr
	}
	return t.confirm, nil
}
func (t *fakeTool) Execute(ctx context.Context, args map[string]any, signal *cancel.Signal, onOutput func(string)) (*ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, args, signal, onOutput)
	}
	return &ToolResult{LLMContent: "ok", Display: "ok"}, nil
}

// drainEvents pulls everything currently queued on the bus.
func drainEvents(b *eventbus.Bus) []events.Event {
	var out []events.Event
	for {
		ctx, cancelCtx := context.WithTimeout(context.Background(), 50*time.Millisecond)
		ev, err := b.Next(ctx)
		cancelCtx()
		if err != nil {
			return out
		}
		out = append(out, ev)
	}
}

func eventTypes(evs []events.Event) []events.Type {
	out := make([]events.Type, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func filterEvents(evs []events.Event, typ events.Type) []events.Event {
	var out []events.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
