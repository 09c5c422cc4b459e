// Package metrics provides Prometheus-based metrics recording for agent
// runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder observes agent run activity. A no-op implementation keeps
// metrics optional.
type Recorder interface {
	ObserveTurn(agentName, status string, duration time.Duration)
	ObserveTokens(agentName string, inputTokens, outputTokens int)
	ObserveFirstToken(agentName string, latency time.Duration)
	IncHandoff(fromAgent, toAgent string)
	IncToolCall(agentName, toolName, status string)
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	turnsTotal        *prometheus.CounterVec
	tokensTotal       *prometheus.CounterVec
	handoffsTotal     *prometheus.CounterVec
	toolCallsTotal    *prometheus.CounterVec
	turnDuration      *prometheus.HistogramVec
	firstTokenLatency *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the metrics with reg, or with the
// default registry when reg is nil.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_turns_total",
				Help: "Total number of agent turns by agent and status",
			},
			[]string{"agent", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_total",
				Help: "Total number of tokens used by agent and type",
			},
			[]string{"agent", "type"},
		),
		handoffsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_handoffs_total",
				Help: "Total number of conversation transfers between agents",
			},
			[]string{"from_agent", "to_agent"},
		),
		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_calls_total",
				Help: "Total number of tool calls by agent, tool and status",
			},
			[]string{"agent", "tool", "status"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_turn_duration_seconds",
				Help:    "Duration of agent turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		firstTokenLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_first_token_latency_seconds",
				Help:    "Time from turn start until the first streamed token",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30},
			},
			[]string{"agent"},
		),
	}
}

func (p *PrometheusRecorder) ObserveTurn(agentName, status string, duration time.Duration) {
	p.turnsTotal.WithLabelValues(agentName, status).Inc()
	p.turnDuration.WithLabelValues(agentName).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveTokens(agentName string, inputTokens, outputTokens int) {
	p.tokensTotal.WithLabelValues(agentName, "input").Add(float64(inputTokens))
	p.tokensTotal.WithLabelValues(agentName, "output").Add(float64(outputTokens))
}

func (p *PrometheusRecorder) ObserveFirstToken(agentName string, latency time.Duration) {
	p.firstTokenLatency.WithLabelValues(agentName).Observe(latency.Seconds())
}

func (p *PrometheusRecorder) IncHandoff(fromAgent, toAgent string) {
	p.handoffsTotal.WithLabelValues(fromAgent, toAgent).Inc()
}

func (p *PrometheusRecorder) IncToolCall(agentName, toolName, status string) {
	p.toolCallsTotal.WithLabelValues(agentName, toolName, status).Inc()
}

// NopRecorder discards every observation.
type NopRecorder struct{}

func (NopRecorder) ObserveTurn(string, string, time.Duration) {}
func (NopRecorder) ObserveTokens(string, int, int)            {}
func (NopRecorder) ObserveFirstToken(string, time.Duration)   {}
func (NopRecorder) IncHandoff(string, string)                 {}
func (NopRecorder) IncToolCall(string, string, string)        {}
