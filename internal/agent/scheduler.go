package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/eventbus"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/pkg/events"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

// ToolCallState is the lifecycle state of one tool call.
type ToolCallState string

const (
	StateValidating       ToolCallState = "validating"
	StateAwaitingApproval ToolCallState = "awaiting_approval"
	StateScheduled        ToolCallState = "scheduled"
	StateExecuting        ToolCallState = "executing"
	StateSuccess          ToolCallState = "success"
	StateError            ToolCallState = "error"
	StateCancelled        ToolCallState = "cancelled"
)

// Terminal reports whether the state ends the call's lifecycle.
func (s ToolCallState) Terminal() bool {
	switch s {
	case StateSuccess, StateError, StateCancelled:
		return true
	}
	return false
}

// CancelledMessage is the synthetic response body for a call the user
// declined or interrupted.
const CancelledMessage = "User cancelled tool call."

// DefaultExecuteTimeout bounds a single tool execution.
const DefaultExecuteTimeout = 300 * time.Second

// ToolCall is the per-call lifecycle record.
type ToolCall struct {
	State        ToolCallState              `json:"state"`
	Request      genai.ToolCallRequest      `json:"request"`
	Confirmation *genai.ConfirmationDetails `json:"confirmation,omitempty"`
	Outcome      genai.ConfirmationOutcome  `json:"outcome,omitempty"`
	Response     *genai.ToolCallResponse    `json:"response,omitempty"`
	StartTime    time.Time                  `json:"startTime"`
	DurationMs   int64                      `json:"durationMs,omitempty"`

	// tool is re-resolved from the registry after deserialization.
	tool Tool
}

// ToolExecutionState is the persistable batch record the scheduler
// owns. It survives the approval suspension so a confirmation can
// resume it, in principle across a process restart.
type ToolExecutionState struct {
	Requests []genai.ToolCallRequest `json:"incomingRequests"`
	Calls    []*ToolCall             `json:"toolCalls"`

	responded bool
}

// AllTerminal reports whether every call has finished.
func (st *ToolExecutionState) AllTerminal() bool {
	for _, c := range st.Calls {
		if !c.State.Terminal() {
			return false
		}
	}
	return true
}

// Suspended reports whether any call awaits user approval.
func (st *ToolExecutionState) Suspended() bool {
	for _, c := range st.Calls {
		if c.State == StateAwaitingApproval {
			return true
		}
	}
	return false
}

func (st *ToolExecutionState) find(callID string) *ToolCall {
	for _, c := range st.Calls {
		if c.Request.CallID == callID {
			return c
		}
	}
	return nil
}

// Responses returns the terminal responses in request order.
func (st *ToolExecutionState) Responses() []*genai.ToolCallResponse {
	out := make([]*genai.ToolCallResponse, 0, len(st.Calls))
	for _, c := range st.Calls {
		if c.Response != nil {
			out = append(out, c.Response)
		}
	}
	return out
}

// SchedulerConfig configures approval gating and execution limits.
type SchedulerConfig struct {
	// ApprovalMode is read at gate time so mode changes apply to the
	// next batch.
	ApprovalMode func() genai.ApprovalMode
	// ExecuteTimeout bounds each tool execution. Zero means
	// DefaultExecuteTimeout.
	ExecuteTimeout time.Duration
}

// Scheduler drives a batch of tool calls through the lifecycle:
// validate, gate on approval, execute concurrently, and report
// terminal responses in request order.
type Scheduler struct {
	registry *Registry
	bus      *eventbus.Bus
	trust    *TrustSet
	config   SchedulerConfig
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewScheduler wires a scheduler for one session.
func NewScheduler(registry *Registry, bus *eventbus.Bus, trust *TrustSet, config SchedulerConfig, logger *observability.Logger, metrics *observability.Metrics) *Scheduler {
	if config.ApprovalMode == nil {
		config.ApprovalMode = func() genai.ApprovalMode { return genai.ApprovalDefault }
	}
	if config.ExecuteTimeout <= 0 {
		config.ExecuteTimeout = DefaultExecuteTimeout
	}
	if trust == nil {
		trust = NewTrustSet()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Scheduler{
		registry: registry,
		bus:      bus,
		trust:    trust,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Trust exposes the session trust set.
func (s *Scheduler) Trust() *TrustSet {
	return s.trust
}

// Schedule validates and gates a batch of requests. If any call needs
// approval it emits a confirmation event per waiting call and returns
// with the state suspended; otherwise it executes everything and the
// returned state is fully terminal.
func (s *Scheduler) Schedule(ctx context.Context, signal *cancel.Signal, requests []genai.ToolCallRequest) (*ToolExecutionState, error) {
	st := &ToolExecutionState{Requests: requests}

	for _, req := range requests {
		s.publish(events.Event{Type: events.TypeToolCallRequest, Value: req})
		st.Calls = append(st.Calls, s.validate(ctx, req))
	}

	s.gate(ctx, signal, st)

	if st.Suspended() {
		s.emitConfirmations(st)
		return st, nil
	}
	return st, s.runToCompletion(ctx, signal, st)
}

// Resume applies a confirmation outcome to one awaiting call. When no
// calls remain awaiting, the batch executes and completes. Resuming a
// call that is already terminal is a no-op.
func (s *Scheduler) Resume(ctx context.Context, signal *cancel.Signal, st *ToolExecutionState, callID string, outcome genai.ConfirmationOutcome, modifiedArgs map[string]any) error {
	call := st.find(callID)
	if call == nil {
		return fmt.Errorf("no suspended tool call %q", callID)
	}
	if call.State != StateAwaitingApproval {
		return nil
	}

	call.Outcome = outcome
	switch outcome {
	case genai.OutcomeCancel:
		s.transition(ctx, call, StateCancelled)
		call.Response = cancelledResponse(call.Request)
	case genai.OutcomeModifyWithEditor:
		if modifiedArgs != nil {
			call.Request.Args = modifiedArgs
		}
		s.transition(ctx, call, StateScheduled)
	case genai.OutcomeApproveAlwaysServer:
		if call.Confirmation != nil {
			s.trust.TrustServer(call.Confirmation.ServerName)
		}
		s.transition(ctx, call, StateScheduled)
	case genai.OutcomeApproveAlwaysTool:
		if call.Confirmation != nil {
			s.trust.TrustTool(call.Confirmation.ServerName, call.Confirmation.ToolName)
		}
		s.transition(ctx, call, StateScheduled)
	case genai.OutcomeApprove:
		s.transition(ctx, call, StateScheduled)
	default:
		return fmt.Errorf("unknown confirmation outcome %q", outcome)
	}

	if st.Suspended() {
		return nil
	}
	return s.runToCompletion(ctx, signal, st)
}

// CancelPending ends every non-terminal call with cancelled and, once
// the batch is terminal, emits the responses.
func (s *Scheduler) CancelPending(ctx context.Context, st *ToolExecutionState) {
	for _, call := range st.Calls {
		if !call.State.Terminal() {
			s.transition(ctx, call, StateCancelled)
			call.Response = cancelledResponse(call.Request)
		}
	}
	s.complete(st)
}

// Rebind re-resolves tool implementations after the state was loaded
// from persistence.
func (s *Scheduler) Rebind(st *ToolExecutionState) {
	for _, call := range st.Calls {
		if call.tool == nil {
			call.tool, _ = s.registry.Get(call.Request.Name)
		}
	}
}

func (s *Scheduler) validate(ctx context.Context, req genai.ToolCallRequest) *ToolCall {
	call := &ToolCall{
		State:     StateValidating,
		Request:   req,
		StartTime: time.Now(),
	}

	tool, ok := s.registry.Get(req.Name)
	if !ok {
		call.State = StateError
		call.Response = ErrorResponse(req, fmt.Errorf("Tool %q not found in registry", req.Name))
		return call
	}
	call.tool = tool

	if err := tool.ValidateParams(req.Args); err != nil {
		s.logger.Debug(ctx, "tool params rejected", "tool", req.Name, "error", err)
		call.State = StateError
		call.Response = ErrorResponse(req, err)
		return call
	}
	return call
}

// gate decides, per validated call, whether it needs user approval.
func (s *Scheduler) gate(ctx context.Context, signal *cancel.Signal, st *ToolExecutionState) {
	mode := s.config.ApprovalMode()

	for _, call := range st.Calls {
		if call.State != StateValidating {
			continue
		}
		if signal != nil && signal.IsSet() {
			s.transition(ctx, call, StateCancelled)
			call.Response = cancelledResponse(call.Request)
			continue
		}
		if mode == genai.ApprovalYolo {
			s.transition(ctx, call, StateScheduled)
			continue
		}

		details, err := call.tool.ShouldConfirm(ctx, call.Request.Args)
		if err != nil {
			s.transition(ctx, call, StateError)
			call.Response = ErrorResponse(call.Request, err)
			continue
		}
		if details == nil {
			s.transition(ctx, call, StateScheduled)
			continue
		}
		if details.Kind == genai.ConfirmEdit && mode == genai.ApprovalAutoEdit {
			s.transition(ctx, call, StateScheduled)
			continue
		}
		if details.Kind == genai.ConfirmMCP && s.trust.IsTrusted(details.ServerName, details.ToolName) {
			s.transition(ctx, call, StateScheduled)
			continue
		}

		call.Confirmation = details
		s.transition(ctx, call, StateAwaitingApproval)
	}
}

func (s *Scheduler) emitConfirmations(st *ToolExecutionState) {
	for _, call := range st.Calls {
		if call.State == StateAwaitingApproval {
			s.publish(events.Event{
				Type: events.TypeToolCallConfirmation,
				Value: events.ToolCallConfirmation{
					Request: call.Request,
					Details: *call.Confirmation,
				},
			})
		}
	}
}

func (s *Scheduler) runToCompletion(ctx context.Context, signal *cancel.Signal, st *ToolExecutionState) error {
	s.execute(ctx, signal, st)
	s.complete(st)
	return nil
}

// execute runs all scheduled calls concurrently. Parallelism is
// uncapped at this layer; tools self-rate-limit if needed.
func (s *Scheduler) execute(ctx context.Context, signal *cancel.Signal, st *ToolExecutionState) {
	var wg sync.WaitGroup
	for _, call := range st.Calls {
		if call.State != StateScheduled {
			continue
		}
		if signal != nil && signal.IsSet() {
			s.transition(ctx, call, StateCancelled)
			call.Response = cancelledResponse(call.Request)
			continue
		}

		s.transition(ctx, call, StateExecuting)
		wg.Add(1)
		go func(call *ToolCall) {
			defer wg.Done()
			s.executeOne(ctx, signal, call)
		}(call)
	}
	wg.Wait()
}

func (s *Scheduler) executeOne(ctx context.Context, signal *cancel.Signal, call *ToolCall) {
	start := time.Now()
	execCtx, cancelExec := context.WithTimeout(ctx, s.config.ExecuteTimeout)
	defer cancelExec()

	onOutput := func(chunk string) {
		s.publish(events.Event{
			Type:  events.TypeToolLog,
			Value: events.ToolLog{CallID: call.Request.CallID, Output: chunk},
		})
	}

	result, err := s.safeExecute(execCtx, call, signal, onOutput)
	call.DurationMs = time.Since(start).Milliseconds()

	switch {
	case signal != nil && signal.IsSet():
		call.State = StateCancelled
		call.Response = cancelledResponse(call.Request)
	case err != nil:
		call.State = StateError
		call.Response = ErrorResponse(call.Request, err)
	default:
		call.State = StateSuccess
		call.Response = &genai.ToolCallResponse{
			CallID:        call.Request.CallID,
			ResponseParts: ToFunctionResponseParts(call.Request.Name, call.Request.CallID, result.LLMContent),
			DisplayResult: result.Display,
		}
	}

	if s.metrics != nil {
		s.metrics.ToolExecutionCounter.WithLabelValues(call.Request.Name, string(call.State)).Inc()
		s.metrics.ToolExecutionDuration.WithLabelValues(call.Request.Name).Observe(time.Since(start).Seconds())
	}
	s.logger.Debug(ctx, "tool call finished",
		"tool", call.Request.Name, "call_id", call.Request.CallID,
		"state", string(call.State), "duration_ms", call.DurationMs)
}

// safeExecute isolates tool panics so a misbehaving tool cannot crash
// the orchestrator.
func (s *Scheduler) safeExecute(ctx context.Context, call *ToolCall, signal *cancel.Signal, onOutput func(string)) (result *ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "tool panicked",
				"tool", call.Request.Name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("tool %q panicked: %v", call.Request.Name, r)
		}
	}()

	result, err = call.tool.Execute(ctx, call.Request.Args, signal, onOutput)
	if err == nil && result == nil {
		result = &ToolResult{}
	}
	return result, err
}

// complete emits one toolCallResponse per call, in request order.
// Safe to call more than once; responses are emitted exactly once.
func (s *Scheduler) complete(st *ToolExecutionState) {
	if st.responded || !st.AllTerminal() {
		return
	}
	st.responded = true
	for _, call := range st.Calls {
		s.publish(events.Event{Type: events.TypeToolCallResponse, Value: call.Response})
	}
}

func (s *Scheduler) transition(ctx context.Context, call *ToolCall, next ToolCallState) {
	s.logger.Debug(ctx, "tool call transition",
		"call_id", call.Request.CallID, "from", string(call.State), "to", string(next))
	call.State = next
}

func (s *Scheduler) publish(ev events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ev); err != nil {
		s.logger.Warn(context.Background(), "event dropped", "type", string(ev.Type), "error", err)
	}
}

func cancelledResponse(req genai.ToolCallRequest) *genai.ToolCallResponse {
	return &genai.ToolCallResponse{
		CallID: req.CallID,
		ResponseParts: []genai.Part{genai.NewFunctionResponsePart(&genai.FunctionResponse{
			ID:       req.CallID,
			Name:     req.Name,
			Response: map[string]any{"error": CancelledMessage},
		})},
		DisplayResult: CancelledMessage,
		Error:         CancelledMessage,
	}
}
