package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes reported by import_rows_total.
const (
	OutcomeParsed    = "parsed"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeImported  = "imported"
)

// Metrics records import throughput. A nil *Metrics is a no-op.
type Metrics struct {
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the import collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Statement rows processed by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "import_duration_seconds",
			Help:    "Time spent previewing or importing a statement file.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.rows, m.duration)
	return m
}

func (m *Metrics) addRows(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rows.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) observe(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
