package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the patient location directory.
type Metrics struct {
	// Directory writes by outcome: created, transferred, status_updated, unchanged
	LocationWrites *prometheus.CounterVec

	BroadcastsCreated *prometheus.CounterVec

	// Replicated records by result: applied, unchanged, conflict
	ReplicatedMerges *prometheus.CounterVec
}

// New registers the directory metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LocationWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_directory_location_writes_total",
			Help: "Location directory writes by outcome",
		}, []string{"outcome"}),

		BroadcastsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_directory_broadcasts_total",
			Help: "Hospital broadcast rows created by type",
		}, []string{"type"}),

		ReplicatedMerges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reunite_directory_replicated_merges_total",
			Help: "Replicated location records merged by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementWrite(outcome string) {
	if m != nil {
		m.LocationWrites.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddBroadcasts(kind string, n int) {
	if m != nil && n > 0 {
		m.BroadcastsCreated.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) IncrementMerge(result string) {
	if m != nil {
		m.ReplicatedMerges.WithLabelValues(result).Inc()
	}
}
