package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the sync worker.
type Metrics struct {
	// Outbox entries handed to the hub by result: sent, retry, failed
	Pushed *prometheus.CounterVec

	// Entries read from the hub by result: acked, applied, rejected, skipped
	Pulled *prometheus.CounterVec

	HubUp prometheus.Gauge

	RoundDuration prometheus.Histogram
}

// New registers the sync metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Pushed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_sync_pushed_total",
			Help: "Outbox entries pushed to the hub by result",
		}, []string{"result"}),

		Pulled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_sync_pulled_total",
			Help: "Hub entries processed by entity type and result",
		}, []string{"entity_type", "result"}),

		HubUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "reunite_sync_hub_up",
			Help: "1 when the last sync round reached the hub",
		}),

		RoundDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reunite_sync_round_duration_seconds",
			Help:    "Duration of one push/pull sync round",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) AddPushed(result string, n int) {
	if m != nil && n > 0 {
		m.Pushed.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) IncrementPulled(entityType, result string) {
	if m != nil {
		m.Pulled.WithLabelValues(entityType, result).Inc()
	}
}

func (m *Metrics) SetHubUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.HubUp.Set(1)
		return
	}
	m.HubUp.Set(0)
}

func (m *Metrics) ObserveRound(seconds float64) {
	if m != nil {
		m.RoundDuration.Observe(seconds)
	}
}
