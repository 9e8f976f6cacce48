package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncDelivery("order_created", "published")
	m.IncDelivery("order_created", "published")
	m.IncDelivery("", "retry")
	m.IncDeadLetter("max_attempts")
	m.ObservePublish(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("order_created", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("unknown", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deadLetters.WithLabelValues("max_attempts")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.latency))
}

func TestNilOutboxMetricsAreNoops(t *testing.T) {
	var m *OutboxMetrics
	m.IncDelivery("order_created", "published")
	m.IncDeadLetter("unroutable")
	m.ObservePublish(time.Second)

	NewOutboxMetrics(nil).IncDelivery("order_created", "retry")
}
