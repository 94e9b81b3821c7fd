// Package metrics defines the Prometheus collectors for the extraction
// pipeline. Collectors hang off a Metrics value registered against a
// caller-supplied registry, so tests and multiple servers never collide.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the pipeline records into.
type Metrics struct {
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	RecoveryStrategy  *prometheus.CounterVec
	AgentSteps        *prometheus.HistogramVec
	StepCeilingHits   *prometheus.CounterVec
	Delegations       *prometheus.CounterVec
	ToolCalls         *prometheus.CounterVec
	LLMRequests       *prometheus.CounterVec
	LLMRequestSeconds *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what unit tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_analyses_total",
				Help: "Idea descriptions analyzed, by outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wayforward_analysis_duration_seconds",
				Help:    "End-to-end analysis duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		RecoveryStrategy: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_recovery_strategy_total",
				Help: "Which recovery strategy produced the draft",
			},
			[]string{"strategy"},
		),
		AgentSteps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayforward_agent_steps",
				Help:    "Reasoning steps used per agent run",
				Buckets: []float64{1, 2, 3, 4, 5, 10, 15, 20, 25},
			},
			[]string{"agent"},
		),
		StepCeilingHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_step_ceiling_hits_total",
				Help: "Agent runs that exhausted their step ceiling",
			},
			[]string{"agent"},
		),
		Delegations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_delegations_total",
				Help: "Coordinator delegations, by worker and status",
			},
			[]string{"worker", "status"},
		),
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_tool_calls_total",
				Help: "Tool invocations, by tool and status",
			},
			[]string{"tool", "status"},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayforward_llm_requests_total",
				Help: "Language model requests, by kind and status",
			},
			[]string{"kind", "status"},
		),
		LLMRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayforward_llm_request_seconds",
				Help:    "Language model request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.AnalysesTotal,
			m.AnalysisDuration,
			m.RecoveryStrategy,
			m.AgentSteps,
			m.StepCeilingHits,
			m.Delegations,
			m.ToolCalls,
			m.LLMRequests,
			m.LLMRequestSeconds,
		)
	}
	return m
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// ObserveAnalysis records one finished Analyze call.
func (m *Metrics) ObserveAnalysis(outcome, strategy string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.RecoveryStrategy.WithLabelValues(strategy).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
}

// ObserveAgentRun records steps used and whether the ceiling was hit.
func (m *Metrics) ObserveAgentRun(agent string, steps int, exhausted bool) {
	if m == nil {
		return
	}
	m.AgentSteps.WithLabelValues(agent).Observe(float64(steps))
	if exhausted {
		m.StepCeilingHits.WithLabelValues(agent).Inc()
	}
}

// ObserveDelegation records a coordinator hand-off.
func (m *Metrics) ObserveDelegation(worker string, ok bool) {
	if m == nil {
		return
	}
	m.Delegations.WithLabelValues(worker, status(ok)).Inc()
}

// ObserveToolCall records one tool invocation.
func (m *Metrics) ObserveToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status(ok)).Inc()
}

// ObserveLLM records one model request.
func (m *Metrics) ObserveLLM(kind string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(kind, status(ok)).Inc()
	m.LLMRequestSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}
