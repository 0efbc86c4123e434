// Package metrics exposes Prometheus counters for bot actions and dialogs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "growbot"

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry
	actions  *prometheus.CounterVec
	dialogs  *prometheus.CounterVec
	sessions *prometheus.CounterVec
	updates  *prometheus.HistogramVec
	sent     *prometheus.CounterVec
	limited  prometheus.Counter
}

// New registers the collectors. withRuntime adds the Go and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "User actions by name and outcome kind.",
		}, []string{"action", "outcome"}),
		dialogs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_inputs_total",
			Help:      "Text inputs fed into dialogs by flow and result.",
		}, []string{"flow", "result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_sessions_total",
			Help:      "Dialog sessions by flow and lifecycle event.",
		}, []string{"flow", "event"}),
		updates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one Telegram update, by update kind.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages queued in reply to updates, by update kind.",
		}, []string{"kind"}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Updates dropped by the per-user rate limiter.",
		}),
	}
	reg.MustRegister(m.actions, m.dialogs, m.sessions, m.updates, m.sent, m.limited)
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Action counts one handled action. outcome is "ok" or a ledger error kind.
func (m *Metrics) Action(action, outcome string) {
	m.actions.WithLabelValues(action, outcome).Inc()
}

// DialogInput counts a text input and what the state machine did with it.
func (m *Metrics) DialogInput(flow, result string) {
	m.dialogs.WithLabelValues(flow, result).Inc()
}

// Session counts a session lifecycle event: started, completed, expired.
func (m *Metrics) Session(flow, event string) {
	m.sessions.WithLabelValues(flow, event).Inc()
}

// Update records one handled update and the number of replies it produced.
func (m *Metrics) Update(kind string, took time.Duration, messages int) {
	m.updates.WithLabelValues(kind).Observe(took.Seconds())
	if messages > 0 {
		m.sent.WithLabelValues(kind).Add(float64(messages))
	}
}

// RateLimited counts an update dropped by the rate limiter.
func (m *Metrics) RateLimited() {
	m.limited.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
