package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics covers the outbox publisher. A nil *OutboxMetrics is a no-op.
type OutboxMetrics struct {
	deliveries  *prometheus.CounterVec
	deadLetters *prometheus.CounterVec
	latency     prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_outbox_deliveries_total",
			Help: "Outbox rows handled by the publisher, by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_outbox_dead_letters_total",
			Help: "Rows moved to outbox_dlq, by reason.",
		}, []string{"reason"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kitstock_outbox_publish_seconds",
			Help:    "Broker publish latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 15},
		}),
	}
	reg.MustRegister(m.deliveries, m.deadLetters, m.latency)
	return m
}

// ObservePublish records one broker call, successful or not.
func (m *OutboxMetrics) ObservePublish(elapsed time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(elapsed.Seconds())
}

// IncDelivery counts a row outcome: published, retry or dead_letter.
func (m *OutboxMetrics) IncDelivery(eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) IncDeadLetter(reason string) {
	if m == nil || m.deadLetters == nil {
		return
	}
	m.deadLetters.WithLabelValues(normalizeLabel(reason)).Inc()
}
