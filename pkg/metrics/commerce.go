package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommerceMetrics counts order and stock outcomes.
type CommerceMetrics struct {
	ordersCreated   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	stockRejections *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
}

func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders created, by source (checkout or subscription).",
	}, []string{"source"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})
	stockRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_rejections_total",
		Help:      "Operations rejected for insufficient stock.",
	}, []string{"operation"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscription_deliveries_total",
		Help:      "Due subscription deliveries processed, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(ordersCreated, transitions, stockRejections, deliveries)
	return &CommerceMetrics{
		ordersCreated:   ordersCreated,
		transitions:     transitions,
		stockRejections: stockRejections,
		deliveries:      deliveries,
	}
}

func (m *CommerceMetrics) OrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *CommerceMetrics) StatusChanged(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *CommerceMetrics) StockRejected(operation string) {
	if m == nil || m.stockRejections == nil {
		return
	}
	m.stockRejections.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SubscriptionDelivery records one delivery outcome per due subscription, plus
// "paused" when a rejection switches the subscription off.
func (m *CommerceMetrics) SubscriptionDelivery(outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
}
