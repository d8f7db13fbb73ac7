package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the core's Prometheus metrics: model call volume
// and latency, retry/fallback counts, tool execution outcomes,
// compression events, and active sessions.
type Metrics struct {
	// ModelRequestDuration measures model API call latency in seconds.
	// Labels: model
	ModelRequestDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model requests.
	// Labels: model, status (success|error)
	ModelRequestCounter *prometheus.CounterVec

	// ModelRetryCounter counts retried model request attempts.
	// Labels: model
	ModelRetryCounter *prometheus.CounterVec

	// ModelFallbackCounter counts rate-limit fallbacks to another model.
	// Labels: from_model, to_model
	ModelFallbackCounter *prometheus.CounterVec

	// TokensUsed tracks token consumption.
	// Labels: model, type (prompt|candidates)
	TokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool calls by terminal state.
	// Labels: tool_name, state (success|error|cancelled)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// CompressionCounter counts history compressions.
	// Labels: status (compressed|failed|skipped)
	CompressionCounter *prometheus.CounterVec

	// ActiveSessions gauges currently connected sessions.
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates the metric set and registers it with reg. Pass a
// fresh registry in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lodestone_model_request_duration_seconds",
				Help:    "Duration of model API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		ModelRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_model_requests_total",
				Help: "Total model requests by model and status",
			},
			[]string{"model", "status"},
		),
		ModelRetryCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_model_retries_total",
				Help: "Total retried model request attempts",
			},
			[]string{"model"},
		),
		ModelFallbackCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_model_fallbacks_total",
				Help: "Total rate-limit fallbacks to another model",
			},
			[]string{"from_model", "to_model"},
		),
		TokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_tokens_total",
				Help: "Total tokens consumed by model and type",
			},
			[]string{"model", "type"},
		),
		ToolExecutionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_tool_executions_total",
				Help: "Total tool calls by tool and terminal state",
			},
			[]string{"tool_name", "state"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lodestone_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"tool_name"},
		),
		CompressionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lodestone_compressions_total",
				Help: "Total history compression attempts by outcome",
			},
			[]string{"status"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lodestone_active_sessions",
				Help: "Currently connected sessions",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.ModelRequestDuration,
			m.ModelRequestCounter,
			m.ModelRetryCounter,
			m.ModelFallbackCounter,
			m.TokensUsed,
			m.ToolExecutionCounter,
			m.ToolExecutionDuration,
			m.CompressionCounter,
			m.ActiveSessions,
		)
	}
	return m
}

// NewTestMetrics returns an unregistered metric set for tests.
func NewTestMetrics() *Metrics {
	return NewMetrics(nil)
}
