package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts what the outbox publisher did with each event.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	backlog  prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox events handled, by event type and outcome (published, retried, parked).",
	}, []string{"event_type", "outcome"})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_last_batch_size",
		Help:      "Events claimed by the most recent publish batch.",
	})
	reg.MustRegister(outcomes, backlog)
	return &OutboxMetrics{outcomes: outcomes, backlog: backlog}
}

func (m *OutboxMetrics) Outcome(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), outcome).Inc()
}

func (m *OutboxMetrics) BatchSize(n int) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.Set(float64(n))
}
