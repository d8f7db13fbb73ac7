package history

import (
	"context"

	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// TokenCounter counts the tokens a content list would occupy in a
// model's context window.
type TokenCounter interface {
	CountTokens(ctx context.Context, model string, contents []genai.Content) (int, error)
}

// Summarizer produces a dense single-text summary of a conversation.
// It is a narrow interface on purpose: the compression engine must
// not hold the whole chat client.
type Summarizer interface {
	Summarize(ctx context.Context, history []genai.Content) (string, error)
}

// CompressionResult reports a completed compression.
type CompressionResult struct {
	OriginalTokenCount int
	NewTokenCount      int
}

// Compressor replaces an oversized history with a model-generated
// summary once the curated history approaches the context window.
type Compressor struct {
	counter    TokenCounter
	summarizer Summarizer
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewCompressor wires a compressor.
func NewCompressor(counter TokenCounter, summarizer Summarizer, logger *observability.Logger, metrics *observability.Metrics) *Compressor {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Compressor{counter: counter, summarizer: summarizer, logger: logger, metrics: metrics}
}

// MaybeCompress checks the curated history against the model's token
// budget and, above the threshold (or when forced), replaces it with
// the environment preamble followed by a summary turn and a fixed
// model acknowledgement.
//
// Compression never fails the turn: on a summarization error, an
// empty summary, or a recount that did not shrink, the original
// history is returned unchanged with a nil result.
func (c *Compressor) MaybeCompress(ctx context.Context, model string, curated []genai.Content, preamble []genai.Content, force bool) ([]genai.Content, *CompressionResult) {
	originalTokens, err := c.counter.CountTokens(ctx, model, curated)
	if err != nil {
		c.logger.Warn(ctx, "token count failed, skipping compression check", "error", err)
		return curated, nil
	}

	limit := TokenLimit(model)
	if !force && float64(originalTokens) < CompressionThreshold*float64(limit) {
		c.countStatus("skipped")
		return curated, nil
	}

	summary, err := c.summarizer.Summarize(ctx, curated)
	if err != nil {
		c.logger.Warn(ctx, "history summarization failed, keeping history", "error", err)
		c.countStatus("failed")
		return curated, nil
	}
	if summary == "" {
		c.logger.Warn(ctx, "history summarization returned empty summary, keeping history")
		c.countStatus("failed")
		return curated, nil
	}

	compressed := make([]genai.Content, 0, len(preamble)+2)
	compressed = append(compressed, preamble...)
	compressed = append(compressed,
		genai.Content{Role: genai.RoleUser, Parts: []genai.Part{genai.NewTextPart(summary)}},
		genai.Content{Role: genai.RoleModel, Parts: []genai.Part{genai.NewTextPart("Acknowledged.")}},
	)

	newTokens, err := c.counter.CountTokens(ctx, model, compressed)
	if err != nil {
		c.logger.Warn(ctx, "token recount failed, keeping history", "error", err)
		c.countStatus("failed")
		return curated, nil
	}
	if newTokens >= originalTokens {
		c.logger.Warn(ctx, "compression did not shrink history, keeping history",
			"original_tokens", originalTokens, "new_tokens", newTokens)
		c.countStatus("failed")
		return curated, nil
	}

	c.logger.Info(ctx, "history compressed",
		"original_tokens", originalTokens, "new_tokens", newTokens)
	c.countStatus("compressed")
	return compressed, &CompressionResult{
		OriginalTokenCount: originalTokens,
		NewTokenCount:      newTokens,
	}
}

func (c *Compressor) countStatus(status string) {
	if c.metrics != nil {
		c.metrics.CompressionCounter.WithLabelValues(status).Inc()
	}
}
