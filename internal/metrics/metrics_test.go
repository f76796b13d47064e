package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caiatech/tunelab/internal/models"
)

func TestObserveImport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveImport("upload", models.ImportReport{
		Records: make([]models.DatasetExport, 3),
		Skipped: []*models.LineParseError{{Line: 2}},
	})
	m.ObserveImport("upload", models.ImportReport{Records: make([]models.DatasetExport, 1)})
	m.ObserveImportFailure("datalab")

	assert.Equal(t, 4.0, testutil.ToFloat64(m.importRecords.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importSkipped.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importFailures.WithLabelValues("datalab")))
}

func TestObserveExportAndRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveExport(5)
	m.ObserveRequest("export", time.Now())

	assert.Equal(t, 5.0, testutil.ToFloat64(m.exportDatasets))
	assert.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP tunelab_export_datasets_total Datasets written to exported files
# TYPE tunelab_export_datasets_total counter
tunelab_export_datasets_total 5
`), "tunelab_export_datasets_total")
	require.NoError(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveImport("upload", models.ImportReport{})
		m.ObserveImportFailure("upload")
		m.ObserveExport(1)
		m.ObserveRequest("import", time.Now())
	})
}
