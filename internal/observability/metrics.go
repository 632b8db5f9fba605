// Package observability exposes Prometheus metrics for the agent.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the agent's instrumentation. A nil *Metrics is valid
// and records nothing, so tests can pass nil freely.
type Metrics struct {
	turnsTotal     *prometheus.CounterVec
	turnDuration   prometheus.Histogram
	llmErrors      *prometheus.CounterVec
	llmLatency     prometheus.Histogram
	llmTokens      *prometheus.CounterVec
	toolExecutions *prometheus.CounterVec
	toolLatency    *prometheus.HistogramVec
	rateLimited    prometheus.Counter
}

// New registers the agent metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentd_turns_total",
			Help: "Processed turns by finish reason.",
		}, []string{"finish_reason"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentd_turn_duration_seconds",
			Help:    "Wall time per turn.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		llmErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentd_llm_errors_total",
			Help: "LLM request failures by classified code.",
		}, []string{"code"}),
		llmLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentd_llm_latency_seconds",
			Help:    "LLM request latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentd_llm_tokens_total",
			Help: "Tokens consumed by direction.",
		}, []string{"direction"}),
		toolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentd_tool_executions_total",
			Help: "Tool executions by tool and result.",
		}, []string{"tool", "result"}),
		toolLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentd_tool_latency_seconds",
			Help:    "Tool execution latency by tool.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"tool"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentd_rate_limited_total",
			Help: "Turns rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) RecordTurn(finishReason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(finishReason).Inc()
	m.turnDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMError(code string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordLLMLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(d.Seconds())
}

func (m *Metrics) RecordTokens(input, output int) {
	if m == nil {
		return
	}
	m.llmTokens.WithLabelValues("input").Add(float64(input))
	m.llmTokens.WithLabelValues("output").Add(float64(output))
}

func (m *Metrics) RecordToolExecution(tool string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.toolExecutions.WithLabelValues(tool, result).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(d.Seconds())
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
