package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Workflow turns and per-turn step counts
//   - LLM request performance and token consumption
//   - Tool execution patterns and latencies
//   - Agent handoffs across the swarm
//   - Terminal session pool occupancy
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordLLMRequest("anthropic", model, "success", elapsed.Seconds(), in, out)
type Metrics struct {
	// WorkflowTurnCounter counts executed turns.
	// Labels: status (ok|error|cancelled)
	WorkflowTurnCounter *prometheus.CounterVec

	// WorkflowSteps measures LLM steps consumed per turn.
	// Buckets: 1, 2, 4, 8, 16, 24, 32, 40
	WorkflowSteps prometheus.Histogram

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// HandoffCounter counts agent-to-agent transfers.
	// Labels: from_agent, to_agent
	HandoffCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by type and component.
	// Labels: component (executor|provider|tool|terminal|storage), error_type
	ErrorCounter *prometheus.CounterVec

	// TerminalSessions is a gauge tracking live tmux sessions in the pool.
	TerminalSessions prometheus.Gauge

	// SessionLogFlushCounter counts event log writes.
	// Labels: status (ok|error)
	SessionLogFlushCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default
// Prometheus registry. Call once at startup; they are served from the
// tool server's /metrics endpoint.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics with a caller-supplied registerer.
// Tests use this to avoid duplicate registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WorkflowTurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_workflow_turns_total",
				Help: "Total number of workflow turns by terminal status",
			},
			[]string{"status"},
		),

		WorkflowSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "redcell_workflow_steps_per_turn",
				Help:    "LLM steps consumed per workflow turn",
				Buckets: []float64{1, 2, 4, 8, 16, 24, 32, 40},
			},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redcell_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redcell_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		HandoffCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_handoffs_total",
				Help: "Total number of agent handoffs",
			},
			[]string{"from_agent", "to_agent"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		TerminalSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "redcell_terminal_sessions",
				Help: "Current number of live tmux sessions in the pool",
			},
		),

		SessionLogFlushCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redcell_session_log_flushes_total",
				Help: "Total number of session log writes by status",
			},
			[]string{"status"},
		),
	}
}

// RecordTurn records a finished workflow turn and its step count.
func (m *Metrics) RecordTurn(status string, steps int) {
	m.WorkflowTurnCounter.WithLabelValues(status).Inc()
	if steps > 0 {
		m.WorkflowSteps.Observe(float64(steps))
	}
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordHandoff records an agent transfer.
func (m *Metrics) RecordHandoff(fromAgent, toAgent string) {
	m.HandoffCounter.WithLabelValues(fromAgent, toAgent).Inc()
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// RecordSessionLogFlush records the outcome of an event log write.
func (m *Metrics) RecordSessionLogFlush(status string) {
	m.SessionLogFlushCounter.WithLabelValues(status).Inc()
}
