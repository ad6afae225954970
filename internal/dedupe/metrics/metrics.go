// Package metrics exposes Prometheus metrics for the dedupe module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dedupe instrumentation. A nil *Metrics is a no-op so
// tests can skip registration.
type Metrics struct {
	MergesTotal    *prometheus.CounterVec
	ContactsMerged prometheus.Counter
	DuplicateSets  prometheus.Gauge
}

// New creates and registers the dedupe metrics.
func New() *Metrics {
	return &Metrics{
		MergesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_merges_total",
			Help: "Total merge operations by outcome",
		}, []string{"outcome"}),
		ContactsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_contacts_merged_total",
			Help: "Total duplicate contacts consolidated into survivors",
		}),
		DuplicateSets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_duplicate_sets",
			Help: "Duplicate sets observed on the most recent listing",
		}),
	}
}

// ObserveMerge records one merge attempt.
func (m *Metrics) ObserveMerge(outcome string, mergedCount int) {
	if m == nil {
		return
	}
	m.MergesTotal.WithLabelValues(outcome).Inc()
	if mergedCount > 0 {
		m.ContactsMerged.Add(float64(mergedCount))
	}
}

// ObserveDuplicateSets records the size of the latest duplicate listing.
func (m *Metrics) ObserveDuplicateSets(count int) {
	if m == nil {
		return
	}
	m.DuplicateSets.Set(float64(count))
}
