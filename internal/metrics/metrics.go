// Package metrics holds the Prometheus collectors for event handling.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sharedlist"

// Outcomes recorded for each handled event.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid"     // rejected input, malformed token
	OutcomeNotFound    = "not_found"   // stale button, unknown code
	OutcomeUnavailable = "unavailable" // store failure
	OutcomePanic       = "panic"
)

type Metrics struct {
	events        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	groupsCreated prometheus.Counter
	codeRetries   prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound chat events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling one event.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"kind"}),
		groupsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_created_total",
			Help:      "Groups created.",
		}),
		codeRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_code_retries_total",
			Help:      "Join code candidates discarded because they were taken.",
		}),
	}
}

// ObserveEvent records one handled event.
func (m *Metrics) ObserveEvent(kind, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) GroupCreated() {
	if m == nil {
		return
	}
	m.groupsCreated.Inc()
}

func (m *Metrics) CodeRetry() {
	if m == nil {
		return
	}
	m.codeRetries.Inc()
}
