package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery outcomes.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxParked    = "parked"
	OutboxDeferred  = "deferred"
)

// OutboxMetrics tracks the outbox publisher's delivery of domain events.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	publish prometheus.Histogram
	batches prometheus.Counter
}

// NewOutboxMetrics registers on reg; a nil registerer yields a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		publish: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_outbox_publish_duration_seconds",
			Help:    "Time from publish call to broker acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_outbox_batches_total",
			Help: "Non-empty batches claimed by the publisher.",
		}),
	}
	reg.MustRegister(m.events, m.publish, m.batches)
	return m
}

func (m *OutboxMetrics) RecordEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) ObservePublish(d time.Duration) {
	if m == nil || m.publish == nil {
		return
	}
	m.publish.Observe(d.Seconds())
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
