package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/eventbus"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/internal/sessions"
	"github.com/lodestone-ai/lodestone/pkg/events"
	"github.com/lodestone-ai/lodestone/pkg/genai"
)

const (
	frameUserInput        = "user_input"
	frameToolConfirmation = "tool_confirmation_response"
	frameCancel           = "cancel"
)

// wsFrame is an inbound client frame. The type tag selects which of
// the remaining fields are meaningful.
type wsFrame struct {
	Type         string         `json:"type"`
	Value        string         `json:"value,omitempty"`
	CallID       string         `json:"callId,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
	ModifiedArgs map[string]any `json:"modifiedArgs,omitempty"`
}

// Session owns one websocket connection and the conversation state
// behind it. Turns run on a single worker goroutine; frames arriving
// while a turn is active are rejected, except cancel.
type Session struct {
	id           string
	conn         *websocket.Conn
	bus          *eventbus.Bus
	orchestrator *agent.Orchestrator
	messages     *sessions.Logger
	logger       *observability.Logger
	metrics      *observability.Metrics

	ctx       context.Context
	cancelCtx context.CancelFunc
	send      chan []byte
	closeOnce sync.Once

	mu      sync.Mutex
	signal  *cancel.Signal
	running bool
}

func (s *Session) run() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.ActiveSessions.Dec()
		}
	}()
	defer s.close()

	go s.writeLoop()
	go s.pumpEvents()
	s.readLoop()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		// Abort any in-flight turn before tearing the stream down.
		s.mu.Lock()
		s.signal.Set()
		s.mu.Unlock()

		s.cancelCtx()
		s.bus.Close()
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendEvent(events.NewError("malformed frame: "+err.Error(), "invalid_frame"))
			continue
		}
		if err := validateFrame(data, &frame); err != nil {
			s.sendEvent(events.NewError("invalid frame: "+err.Error(), "invalid_frame"))
			continue
		}

		s.dispatch(frame)
	}
}

func (s *Session) dispatch(frame wsFrame) {
	switch frame.Type {
	case frameUserInput:
		s.handleUserInput(frame.Value)
	case frameToolConfirmation:
		s.handleToolConfirmation(frame)
	case frameCancel:
		s.handleCancel()
	}
}

func (s *Session) handleUserInput(value string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendEvent(events.NewError("a turn is already in progress", "busy"))
		return
	}
	if s.signal.IsSet() {
		// A latched signal never unsets; each post-cancel turn gets a
		// fresh one.
		s.signal = cancel.NewSignal()
		s.orchestrator.ResetSignal(s.signal)
	}
	s.running = true
	s.mu.Unlock()

	if s.messages != nil {
		if err := s.messages.Log("user", value); err != nil {
			s.logger.Warn(s.ctx, "message log write failed", "error", err)
		}
	}

	go func() {
		defer s.finishTurn()
		if _, err := s.orchestrator.Run(s.ctx, []genai.Part{genai.NewTextPart(value)}); err != nil {
			s.logger.Warn(s.ctx, "turn failed", "error", err)
		}
	}()
}

func (s *Session) handleToolConfirmation(frame wsFrame) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendEvent(events.NewError("a turn is already in progress", "busy"))
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer s.finishTurn()
		_, err := s.orchestrator.ResumeToolConfirmation(
			s.ctx, frame.CallID, genai.ConfirmationOutcome(frame.Outcome), frame.ModifiedArgs)
		if err != nil {
			s.logger.Warn(s.ctx, "tool confirmation failed", "error", err)
		}
	}()
}

func (s *Session) handleCancel() {
	s.mu.Lock()
	s.signal.Set()
	busy := s.running
	s.mu.Unlock()

	if busy {
		// The running turn observes the signal at its next safe point
		// and finalizes itself.
		return
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go func() {
		defer s.finishTurn()
		s.orchestrator.HandleCancellation(s.ctx)
	}()
}

func (s *Session) finishTurn() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// pumpEvents is the bus's single consumer: it drains the session's
// event stream to the socket in publication order. Passive Subscribe
// observers stay available for tooling; the primary queue is ours.
func (s *Session) pumpEvents() {
	for {
		ev, err := s.bus.Next(s.ctx)
		if err != nil {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn(s.ctx, "event encode failed", "type", string(ev.Type), "error", err)
			continue
		}
		select {
		case s.send <- data:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) sendEvent(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	case <-s.ctx.Done():
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}
