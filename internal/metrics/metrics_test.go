package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEvent("text", OutcomeOK, 3*time.Millisecond)
	m.ObserveEvent("text", OutcomeOK, time.Millisecond)
	m.ObserveEvent("button", OutcomeNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("text", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("button", OutcomeNotFound)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestGroupCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.GroupCreated()
	m.CodeRetry()
	m.CodeRetry()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.groupsCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.codeRetries))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvent("text", OutcomeOK, time.Second)
		m.GroupCreated()
		m.CodeRetry()
	})
}
