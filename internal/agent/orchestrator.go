package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-ai/lodestone/internal/backoff"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/eventbus"
	"github.com/lodestone-ai/lodestone/internal/history"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/pkg/events"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// RunStatus tells the session manager how a run ended.
type RunStatus int

const (
	// StatusCompleted means the turn loop finished and emitted
	// turnComplete (or surfaced an error event).
	StatusCompleted RunStatus = iota
	// StatusSuspended means tool calls await user confirmation.
	StatusSuspended
	// StatusCancelled means the cancellation signal ended the turn.
	StatusCancelled
)

const (
	// DefaultMaxTurns bounds the turn loop per session.
	DefaultMaxTurns = 100
	// DefaultModelTimeout bounds one model call.
	DefaultModelTimeout = 600 * time.Second
)

// ErrInvalidState marks a resume with no suspended tool state; the
// session ends gracefully when it surfaces.
var ErrInvalidState = errors.New("invalid orchestrator state")

// errStreamCancelled aborts a model stream at a chunk boundary when
// the cancellation signal trips.
var errStreamCancelled = errors.New("model stream cancelled")

// OrchestratorConfig carries the per-session knobs.
type OrchestratorConfig struct {
	SessionID string
	Model     string
	// AuthType is passed to the rate-limit fallback handler.
	AuthType string
	// FallbackHandler maps a persistent rate limit to an alternative
	// model id; nil disables fallback.
	FallbackHandler backoff.FallbackHandler
	// MaxTurns of 0 is honored literally: the loop emits turnComplete
	// immediately. Use DefaultMaxTurns for the normal bound.
	MaxTurns     int
	ModelTimeout time.Duration
	UserMemory   string
	ContextFiles []string
	// Retry overrides the model-call retry options, used by tests.
	Retry *backoff.Options
}

// Orchestrator owns one session's conversation state and runs the
// turn loop: curate, maybe compress, stream the model, dispatch
// tools, and check continuation.
type Orchestrator struct {
	config     OrchestratorConfig
	generator  ContentGenerator
	registry   *Registry
	scheduler  *Scheduler
	bus        *eventbus.Bus
	compressor *history.Compressor
	signal     *cancel.Signal
	logger     *observability.Logger
	metrics    *observability.Metrics

	model        string
	history      []genai.Content
	preamble     []genai.Content
	pendingInput []genai.Part
	pendingTools *ToolExecutionState
	turnCount    int
	usage        genai.UsageMetadata
}

// NewOrchestrator creates a session orchestrator. The environment
// preamble seeds the history and is re-prepended by compression.
func NewOrchestrator(
	config OrchestratorConfig,
	generator ContentGenerator,
	registry *Registry,
	scheduler *Scheduler,
	bus *eventbus.Bus,
	compressor *history.Compressor,
	signal *cancel.Signal,
	preamble []genai.Content,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if config.ModelTimeout <= 0 {
		config.ModelTimeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	o := &Orchestrator{
		config:     config,
		generator:  generator,
		registry:   registry,
		scheduler:  scheduler,
		bus:        bus,
		compressor: compressor,
		signal:     signal,
		logger:     logger,
		metrics:    metrics,
		model:      config.Model,
	}
	o.preamble = append(o.preamble, preamble...)
	o.history = append(o.history, preamble...)
	return o
}

// ResetSignal swaps in a fresh cancellation signal. The session
// manager calls this before the first turn after a cancellation, since
// a latched signal never unsets.
func (o *Orchestrator) ResetSignal(signal *cancel.Signal) {
	o.signal = signal
}

// Model returns the currently targeted model id, which a rate-limit
// fallback may have changed.
func (o *Orchestrator) Model() string {
	return o.model
}

// History returns the comprehensive history.
func (o *Orchestrator) History() []genai.Content {
	return o.history
}

// CuratedHistory returns the history as the model will see it.
func (o *Orchestrator) CuratedHistory() []genai.Content {
	return history.Curate(o.history)
}

// Suspended reports whether tool calls await confirmation.
func (o *Orchestrator) Suspended() bool {
	return o.pendingTools != nil && o.pendingTools.Suspended()
}

// Run starts a turn with the given user input and loops until the
// turn completes, suspends on a confirmation, or is cancelled.
func (o *Orchestrator) Run(ctx context.Context, input []genai.Part) (RunStatus, error) {
	o.pendingInput = input
	return o.loop(ctx)
}

// ResumeToolConfirmation applies a confirmation outcome to the
// suspended tool batch and, once no approvals remain outstanding,
// resumes the turn loop.
func (o *Orchestrator) ResumeToolConfirmation(ctx context.Context, callID string, outcome genai.ConfirmationOutcome, modifiedArgs map[string]any) (RunStatus, error) {
	if o.pendingTools == nil {
		o.emit(events.NewError("no suspended tool calls to resume", "invalid_state"))
		return StatusCompleted, fmt.Errorf("%w: no suspended tool calls", ErrInvalidState)
	}
	if o.signal.IsSet() {
		return o.finishCancelled(), nil
	}

	o.scheduler.Rebind(o.pendingTools)
	if err := o.scheduler.Resume(ctx, o.signal, o.pendingTools, callID, outcome, modifiedArgs); err != nil {
		o.emit(events.NewError(err.Error(), "invalid_state"))
		return StatusCompleted, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if o.pendingTools.Suspended() {
		return StatusSuspended, nil
	}

	o.absorbToolResponses(o.pendingTools)
	o.pendingTools = nil
	return o.loop(ctx)
}

// HandleCancellation finalizes the turn after the cancellation signal
// was set: suspended tool calls become cancelled, their responses
// join the history, and userCancelled is emitted.
func (o *Orchestrator) HandleCancellation(ctx context.Context) RunStatus {
	if o.pendingTools != nil {
		o.scheduler.CancelPending(ctx, o.pendingTools)
		o.absorbToolResponses(o.pendingTools)
		o.pendingTools = nil
	}
	return o.finishCancelled()
}

func (o *Orchestrator) loop(ctx context.Context) (RunStatus, error) {
	for {
		if o.signal.IsSet() {
			return o.finishCancelled(), nil
		}
		if o.turnCount >= o.config.MaxTurns {
			o.emit(events.Event{Type: events.TypeTurnComplete})
			return StatusCompleted, nil
		}
		o.turnCount++

		if len(o.pendingInput) > 0 {
			o.history = append(o.history, genai.Content{Role: genai.RoleUser, Parts: o.pendingInput})
			o.pendingInput = nil
		}

		curated := history.Curate(o.history)
		if o.compressor != nil {
			compressed, res := o.compressor.MaybeCompress(ctx, o.model, curated, o.preamble, false)
			if res != nil {
				o.history = compressed
				curated = compressed
				o.emit(events.Event{Type: events.TypeChatCompressed, Value: events.ChatCompressed{
					OriginalTokenCount: res.OriginalTokenCount,
					NewTokenCount:      res.NewTokenCount,
				}})
			}
		}

		turn, err := o.streamModel(ctx, curated)
		if o.signal.IsSet() {
			// Partial model output is discarded whole.
			return o.finishCancelled(), nil
		}
		if err != nil {
			o.emitError(err)
			return StatusCompleted, err
		}

		if len(turn.parts) > 0 {
			o.history = append(o.history, genai.Content{Role: genai.RoleModel, Parts: turn.parts})
		} else if len(o.history) == 0 || o.history[len(o.history)-1].Role != genai.RoleFunction {
			// An empty model turn is still recorded so curation can
			// drop it together with its triggering user turn.
			o.history = append(o.history, genai.Content{Role: genai.RoleModel})
		}

		if turn.usage != nil {
			o.accumulateUsage(turn.usage)
			o.emit(events.Event{Type: events.TypeUsageMetadata, Value: *turn.usage})
		}

		if len(turn.calls) == 0 {
			speaker := CheckNextSpeaker(ctx, o.generator, o.model, o.history, history.Curate(o.history), o.logger)
			if speaker == SpeakerModel {
				o.pendingInput = []genai.Part{genai.NewTextPart(continuePrompt)}
				continue
			}
			o.emit(events.Event{Type: events.TypeTurnComplete})
			return StatusCompleted, nil
		}

		st, err := o.scheduler.Schedule(ctx, o.signal, turn.calls)
		if err != nil {
			o.emitError(err)
			return StatusCompleted, err
		}
		if st.Suspended() {
			o.pendingTools = st
			return StatusSuspended, nil
		}
		o.absorbToolResponses(st)
	}
}

// modelTurn aggregates one streamed model response.
type modelTurn struct {
	parts []genai.Part
	calls []genai.ToolCallRequest
	usage *genai.UsageMetadata
}

// streamModel calls the model under the retry policy, fanning out
// thought and content events per chunk and collecting function calls.
func (o *Orchestrator) streamModel(ctx context.Context, curated []genai.Content) (*modelTurn, error) {
	opts := backoff.DefaultOptions()
	if o.config.Retry != nil {
		opts = *o.config.Retry
	}
	opts.AuthType = o.config.AuthType
	opts.OnFallback = o.config.FallbackHandler
	fromModel := o.model
	opts.FallbackApplied = func(model string) {
		o.logger.Info(ctx, "rate limited, falling back to alternate model",
			"from", fromModel, "to", model)
		if o.metrics != nil {
			o.metrics.ModelFallbackCounter.WithLabelValues(fromModel, model).Inc()
		}
		o.model = model
	}

	start := time.Now()
	result, err := backoff.Retry(ctx, opts, func(ctx context.Context) (*modelTurn, error) {
		return o.streamOnce(ctx, curated)
	})

	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.metrics.ModelRequestCounter.WithLabelValues(o.model, status).Inc()
		o.metrics.ModelRequestDuration.WithLabelValues(o.model).Observe(time.Since(start).Seconds())
		if result.Attempts > 1 {
			o.metrics.ModelRetryCounter.WithLabelValues(o.model).Add(float64(result.Attempts - 1))
		}
	}
	if err != nil {
		if errors.Is(err, errStreamCancelled) {
			return nil, nil
		}
		return nil, err
	}

	turn := result.Value
	if turn.usage != nil {
		turn.usage.APITimeMs = time.Since(start).Milliseconds()
	}
	return turn, nil
}

func (o *Orchestrator) streamOnce(ctx context.Context, curated []genai.Content) (*modelTurn, error) {
	callCtx, cancelCall := context.WithTimeout(ctx, o.config.ModelTimeout)
	defer cancelCall()

	stream, err := o.generator.GenerateContentStream(callCtx, GenerateRequest{
		Model:             o.model,
		SystemInstruction: BuildSystemInstruction(o.config.UserMemory, o.config.ContextFiles),
		Contents:          curated,
		Tools:             o.registry.Declarations(),
	})
	if err != nil {
		return nil, err
	}

	turn := &modelTurn{}
	for chunk := range stream {
		if o.signal.IsSet() {
			return nil, errStreamCancelled
		}
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		for _, part := range chunk.Parts {
			o.fanOutPart(turn, part)
		}
		if chunk.Usage != nil {
			turn.usage = chunk.Usage
		}
	}
	return turn, nil
}

func (o *Orchestrator) fanOutPart(turn *modelTurn, part genai.Part) {
	switch {
	case part.IsThought():
		subject, description := parseThought(part.Text)
		o.emit(events.NewThought(subject, description))
		turn.parts = append(turn.parts, part)
	case part.FunctionCall != nil:
		fc := *part.FunctionCall
		if fc.ID == "" {
			fc.ID = uuid.NewString()
		}
		turn.parts = append(turn.parts, genai.NewFunctionCallPart(&fc))
		turn.calls = append(turn.calls, genai.ToolCallRequest{
			CallID: fc.ID,
			Name:   fc.Name,
			Args:   fc.Args,
		})
	case part.IsText():
		if part.Text != "" {
			o.emit(events.Content(part.Text))
		}
		turn.parts = append(turn.parts, part)
	default:
		turn.parts = append(turn.parts, part)
	}
}

// absorbToolResponses appends each completed call's response parts as
// a function-role turn.
func (o *Orchestrator) absorbToolResponses(st *ToolExecutionState) {
	for _, resp := range st.Responses() {
		if len(resp.ResponseParts) == 0 {
			continue
		}
		o.history = append(o.history, genai.Content{
			Role:  genai.RoleFunction,
			Parts: resp.ResponseParts,
		})
	}
}

func (o *Orchestrator) accumulateUsage(u *genai.UsageMetadata) {
	o.usage.PromptTokenCount += u.PromptTokenCount
	o.usage.CandidatesTokenCount += u.CandidatesTokenCount
	o.usage.TotalTokenCount += u.TotalTokenCount
	o.usage.APITimeMs += u.APITimeMs
	if o.metrics != nil {
		o.metrics.TokensUsed.WithLabelValues(o.model, "prompt").Add(float64(u.PromptTokenCount))
		o.metrics.TokensUsed.WithLabelValues(o.model, "candidates").Add(float64(u.CandidatesTokenCount))
	}
}

// SessionUsage returns the accumulated token usage for the session.
func (o *Orchestrator) SessionUsage() genai.UsageMetadata {
	return o.usage
}

func (o *Orchestrator) finishCancelled() RunStatus {
	o.emit(events.Event{Type: events.TypeUserCancelled})
	return StatusCancelled
}

func (o *Orchestrator) emit(ev events.Event) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(ev); err != nil {
		o.logger.Warn(context.Background(), "event dropped", "type", string(ev.Type), "error", err)
	}
}

func (o *Orchestrator) emitError(err error) {
	status := ""
	if code := backoff.StatusOf(err); code != 0 {
		status = strconv.Itoa(code)
	}
	o.emit(events.NewError(err.Error(), status))
}
