package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the facial match index.
type Metrics struct {
	// Enrollments by result: created, duplicate, rejected
	Enrollments *prometheus.CounterVec

	// Search hits by confidence tier
	MatchTiers *prometheus.CounterVec

	SearchLatency prometheus.Histogram

	// Photos in the current snapshot
	IndexSize prometheus.Gauge

	IndexGeneration prometheus.Gauge
}

// New registers the facematch metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enrollments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_facematch_enrollments_total",
			Help: "Photo enrollments by result",
		}, []string{"result"}),

		MatchTiers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_facematch_matches_total",
			Help: "Search results returned by confidence tier",
		}, []string{"tier"}),

		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reunite_facematch_search_duration_seconds",
			Help:    "Duration of photo searches including extraction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		IndexSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "reunite_facematch_index_photos",
			Help: "Photos in the current search snapshot",
		}),

		IndexGeneration: f.NewGauge(prometheus.GaugeOpts{
			Name: "reunite_facematch_index_generation",
			Help: "Generation of the current search snapshot",
		}),
	}
}

func (m *Metrics) IncrementEnrollment(result string) {
	if m != nil {
		m.Enrollments.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementMatch(tier string) {
	if m != nil {
		m.MatchTiers.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) ObserveSearchLatency(d time.Duration) {
	if m != nil {
		m.SearchLatency.Observe(d.Seconds())
	}
}

// SetIndex records the size and generation of a newly published snapshot.
func (m *Metrics) SetIndex(size int, generation uint64) {
	if m != nil {
		m.IndexSize.Set(float64(size))
		m.IndexGeneration.Set(float64(generation))
	}
}
