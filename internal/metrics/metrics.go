// Package metrics exposes Prometheus counters for imports and exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/caiatech/tunelab/internal/models"
)

type Metrics struct {
	importRecords   *prometheus.CounterVec
	importSkipped   *prometheus.CounterVec
	importFailures  *prometheus.CounterVec
	exportDatasets  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers the counters on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		importRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tunelab_import_records_total",
			Help: "Records successfully parsed during import, by source",
		}, []string{"source"}),
		importSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tunelab_import_skipped_lines_total",
			Help: "Lines dropped during import because they did not parse, by source",
		}, []string{"source"}),
		importFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tunelab_import_failures_total",
			Help: "Imports that failed as a whole, by source",
		}, []string{"source"}),
		exportDatasets: f.NewCounter(prometheus.CounterOpts{
			Name: "tunelab_export_datasets_total",
			Help: "Datasets written to exported files",
		}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tunelab_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"route"}),
	}
}

func (m *Metrics) ObserveImport(source string, r models.ImportReport) {
	if m == nil {
		return
	}
	m.importRecords.WithLabelValues(source).Add(float64(len(r.Records)))
	m.importSkipped.WithLabelValues(source).Add(float64(len(r.Skipped)))
}

func (m *Metrics) ObserveImportFailure(source string) {
	if m == nil {
		return
	}
	m.importFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveExport(datasets int) {
	if m == nil {
		return
	}
	m.exportDatasets.Add(float64(datasets))
}

func (m *Metrics) ObserveRequest(route string, started time.Time) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
}
