package agent

import (
	"context"
	"strings"

	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// GeneratorSummarizer implements history.Summarizer over a
// ContentGenerator. It is the only object the compression engine
// holds, which keeps the engine decoupled from the chat client.
type GeneratorSummarizer struct {
	generator ContentGenerator
	// model is read per call so a fallback retarget applies to
	// summarization too.
	model func() string
}

// NewGeneratorSummarizer wires a summarizer.
func NewGeneratorSummarizer(generator ContentGenerator, model func() string) *GeneratorSummarizer {
	return &GeneratorSummarizer{generator: generator, model: model}
}

// Summarize appends the compression prompt as a final user turn and
// returns the model's single-text summary.
func (s *GeneratorSummarizer) Summarize(ctx context.Context, history []genai.Content) (string, error) {
	contents := make([]genai.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, genai.Content{
		Role:  genai.RoleUser,
		Parts: []genai.Part{genai.NewTextPart(compressionPrompt)},
	})

	resp, err := s.generator.GenerateContent(ctx, GenerateRequest{
		Model:    s.model(),
		Contents: contents,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(ResponseText(resp)), nil
}
