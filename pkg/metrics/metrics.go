package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the receptionist.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Webhook metrics
	WebhooksTotal   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec
	ReplaysTotal    prometheus.Counter

	// Conversation metrics
	StateTransitions *prometheus.CounterVec
	FlowSteps        *prometheus.CounterVec
	LeadsTotal       *prometheus.CounterVec
	ActiveCalls      prometheus.Gauge

	// AI metrics
	CompletionsTotal   *prometheus.CounterVec
	CompletionDuration prometheus.Histogram
	ToolCallsTotal     *prometheus.CounterVec

	// Job metrics
	JobsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all Prometheus metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "receptionist"
	}

	registry := prometheus.NewRegistry()

	webhooksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Total number of provider webhooks handled",
		},
		[]string{"route", "status"},
	)

	webhookDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"route"},
	)

	replaysTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_replays_total",
			Help:      "Retried callbacks answered from the stored response",
		},
	)

	stateTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Conversation state transitions",
		},
		[]string{"from", "to"},
	)

	flowSteps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_steps_total",
			Help:      "Flow steps executed by type",
		},
		[]string{"step_type"},
	)

	leadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Leads captured by source",
		},
		[]string{"source"},
	)

	activeCalls := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Calls started and not yet completed on this instance",
		},
	)

	completionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_completions_total",
			Help:      "Chat completions issued",
		},
		[]string{"outcome"},
	)

	completionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_completion_duration_seconds",
			Help:      "Chat completion latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		},
	)

	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tool_calls_total",
			Help:      "Tool calls executed",
		},
		[]string{"tool", "outcome"},
	)

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs processed",
		},
		[]string{"type", "outcome"},
	)

	// Register all metrics
	registry.MustRegister(
		webhooksTotal,
		webhookDuration,
		replaysTotal,
		stateTransitions,
		flowSteps,
		leadsTotal,
		activeCalls,
		completionsTotal,
		completionDuration,
		toolCallsTotal,
		jobsTotal,
	)

	return &Metrics{
		registry:           registry,
		WebhooksTotal:      webhooksTotal,
		WebhookDuration:    webhookDuration,
		ReplaysTotal:       replaysTotal,
		StateTransitions:   stateTransitions,
		FlowSteps:          flowSteps,
		LeadsTotal:         leadsTotal,
		ActiveCalls:        activeCalls,
		CompletionsTotal:   completionsTotal,
		CompletionDuration: completionDuration,
		ToolCallsTotal:     toolCallsTotal,
		JobsTotal:          jobsTotal,
	}
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordWebhook records a handled webhook.
func (m *Metrics) RecordWebhook(route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(route, status).Inc()
	m.WebhookDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordReplay records a retried callback answered from the stored response.
func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.ReplaysTotal.Inc()
}

// RecordTransition records a state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordFlowStep records an executed flow step.
func (m *Metrics) RecordFlowStep(stepType string) {
	if m == nil {
		return
	}
	m.FlowSteps.WithLabelValues(stepType).Inc()
}

// RecordLead records a captured lead.
func (m *Metrics) RecordLead(source string) {
	if m == nil {
		return
	}
	m.LeadsTotal.WithLabelValues(source).Inc()
}

// RecordCallStart records a call starting on this instance.
func (m *Metrics) RecordCallStart() {
	if m == nil {
		return
	}
	m.ActiveCalls.Inc()
}

// RecordCallEnd records a call completing on this instance.
func (m *Metrics) RecordCallEnd() {
	if m == nil {
		return
	}
	m.ActiveCalls.Dec()
}

// RecordCompletion records a chat completion.
func (m *Metrics) RecordCompletion(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(outcome).Inc()
	m.CompletionDuration.Observe(duration.Seconds())
}

// RecordToolCall records an executed tool call.
func (m *Metrics) RecordToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// RecordJob records a processed job.
func (m *Metrics) RecordJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(jobType, outcome).Inc()
}
