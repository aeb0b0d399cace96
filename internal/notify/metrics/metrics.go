package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for notification fan-out and delivery.
type Metrics struct {
	// Rows created by notification type
	Created *prometheus.CounterVec

	// Fan-out attempts that hit an existing idempotency key
	Deduplicated prometheus.Counter

	// Delivery attempts by channel and result: delivered, retry, failed
	Deliveries *prometheus.CounterVec

	DeliveryLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_notifications_created_total",
			Help: "Family notifications created by type",
		}, []string{"type"}),

		Deduplicated: f.NewCounter(prometheus.CounterOpts{
			Name: "reunite_notifications_deduplicated_total",
			Help: "Fan-out attempts suppressed by an existing idempotency key",
		}),

		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_notification_deliveries_total",
			Help: "Notification delivery attempts by channel and result",
		}, []string{"channel", "result"}),

		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reunite_notification_delivery_seconds",
			Help:    "Time spent in the delivery transport",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementCreated(kind string) {
	if m != nil {
		m.Created.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncrementDeduplicated() {
	if m != nil {
		m.Deduplicated.Inc()
	}
}

func (m *Metrics) IncrementDelivery(channel, result string) {
	if m != nil {
		m.Deliveries.WithLabelValues(channel, result).Inc()
	}
}

func (m *Metrics) ObserveDelivery(seconds float64) {
	if m != nil {
		m.DeliveryLatency.Observe(seconds)
	}
}
