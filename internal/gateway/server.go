// Package gateway exposes the conversation core over a websocket:
// one connection is one session, inbound frames carry user input and
// confirmation outcomes, and the session's event stream flows back as
// JSON frames.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/backoff"
	"github.com/lodestone-ai/lodestone/internal/cancel"
	"github.com/lodestone-ai/lodestone/internal/config"
	"github.com/lodestone-ai/lodestone/internal/env"
	"github.com/lodestone-ai/lodestone/internal/eventbus"
	"github.com/lodestone-ai/lodestone/internal/history"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/internal/sessions"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsPingInterval    = 15 * time.Second
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

// Server accepts websocket sessions and serves the metrics endpoint.
type Server struct {
	config    *config.Config
	generator agent.ContentGenerator
	registry  *agent.Registry
	paths     *sessions.Paths
	logger    *observability.Logger
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader

	httpServer *http.Server
}

// NewServer wires the gateway. The registry is shared across sessions;
// everything conversational is per connection.
func NewServer(cfg *config.Config, generator agent.ContentGenerator, registry *agent.Registry, reg *prometheus.Registry, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	metrics := observability.NewTestMetrics()
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}
	s := &Server{
		config:    cfg,
		generator: generator,
		registry:  registry,
		paths:     sessions.NewPaths(cfg.Storage.StateDir, cfg.Storage.ProjectDir),
		logger:    logger,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "gateway listening", "addr", s.config.Server.Listen)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	session, err := s.newSession(r.Context(), conn)
	if err != nil {
		s.logger.Error(r.Context(), "session setup failed", "error", err)
		_ = conn.Close()
		return
	}
	s.logger.Info(session.ctx, "session started", "session_id", session.id)
	session.run()
	s.logger.Info(context.Background(), "session ended", "session_id", session.id)
}

// fallbackHandler retargets a persistently rate-limited session to the
// configured fallback model at most once. When the session already
// runs on the fallback there is no alternative left, so the handler
// reports none and the retry budget is allowed to exhaust.
func fallbackHandler(currentModel func() string, fallbackModel string) backoff.FallbackHandler {
	return func(context.Context, string) string {
		if currentModel() == fallbackModel {
			return ""
		}
		return fallbackModel
	}
}

func (s *Server) newSession(parent context.Context, conn *websocket.Conn) (*Session, error) {
	id := uuid.NewString()
	ctx, cancelCtx := context.WithCancel(context.WithoutCancel(parent))
	ctx = context.WithValue(ctx, observability.SessionIDKey, id)

	bus := eventbus.New()
	signal := cancel.NewSignal()
	// Session correlation rides on the context; the logger picks
	// SessionIDKey up from there.
	logger := s.logger

	scheduler := agent.NewScheduler(s.registry, bus, agent.NewTrustSet(), agent.SchedulerConfig{
		ApprovalMode: s.config.ApprovalMode,
	}, logger, s.metrics)

	// The summarizer reads the model id through the orchestrator so a
	// rate-limit fallback applies to compression calls too.
	var orch *agent.Orchestrator
	summarizer := agent.NewGeneratorSummarizer(s.generator, func() string { return orch.Model() })
	compressor := history.NewCompressor(s.generator, summarizer, logger, s.metrics)

	var fallback backoff.FallbackHandler
	if s.config.Model.Fallback != "" {
		fallback = fallbackHandler(func() string { return orch.Model() }, s.config.Model.Fallback)
	}

	orch = agent.NewOrchestrator(agent.OrchestratorConfig{
		SessionID:       id,
		Model:           s.config.Model.ID,
		AuthType:        s.config.Model.AuthType,
		FallbackHandler: fallback,
		MaxTurns:        s.config.MaxTurns,
		ModelTimeout:    s.config.Model.Timeout,
	}, s.generator, s.registry, scheduler, bus, compressor, signal,
		env.BuildPreamble(s.config.Storage.ProjectDir, time.Now()), logger, s.metrics)

	messages, err := sessions.NewLogger(s.paths, id)
	if err != nil {
		cancelCtx()
		bus.Close()
		return nil, err
	}

	return &Session{
		id:           id,
		conn:         conn,
		bus:          bus,
		orchestrator: orch,
		messages:     messages,
		logger:       logger,
		metrics:      s.metrics,
		ctx:          ctx,
		cancelCtx:    cancelCtx,
		send:         make(chan []byte, 64),
		signal:       signal,
	}, nil
}
