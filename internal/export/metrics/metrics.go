package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the export module.
type Metrics struct {
	// Completed exports by requested minimum confidence
	ExportsTotal *prometheus.CounterVec

	// Failed exports by error code
	ExportFailures *prometheus.CounterVec

	// End-to-end export latency including query and serialization
	ExportDuration prometheus.Histogram

	// Records per export
	RecordCount prometheus.Histogram
}

// New creates a Metrics instance with all export module metrics registered.
func New() *Metrics {
	return &Metrics{
		ExportsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_exports_total",
			Help: "Total completed mailing-list exports by minimum confidence",
		}, []string{"min_confidence"}),

		ExportFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_export_failures_total",
			Help: "Total failed mailing-list exports by error code",
		}, []string{"code"}),

		ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_export_duration_seconds",
			Help:    "Duration of mailing-list export including query and CSV serialization",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		RecordCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_export_records",
			Help:    "Number of contact records per export",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),
	}
}

// ObserveExport records a completed export.
func (m *Metrics) ObserveExport(minConfidence string, records int, d time.Duration) {
	if m != nil {
		m.ExportsTotal.WithLabelValues(minConfidence).Inc()
		m.ExportDuration.Observe(d.Seconds())
		m.RecordCount.Observe(float64(records))
	}
}

// IncrementFailure records a failed export.
func (m *Metrics) IncrementFailure(code string) {
	if m != nil {
		m.ExportFailures.WithLabelValues(code).Inc()
	}
}
