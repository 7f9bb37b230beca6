// Package metrics exposes Prometheus metrics for import cycles.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "esoimport_"

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics bundles importer metrics.
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	PointsTotal      *prometheus.CounterVec
	RecordsPublished *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	LastSuccess      prometheus.Gauge
}

// New constructs the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cycles_total",
				Help: "Total import cycles by result",
			},
			[]string{"result"},
		),
		PointsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "points_total",
				Help: "Total metering point imports by result",
			},
			[]string{"result"},
		),
		RecordsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_published_total",
				Help: "Total published statistic records by kind",
			},
			[]string{"kind"},
		),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "cycle_duration_seconds",
			Help:    "Import cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful import cycle",
		}),
	}
	reg.MustRegister(
		m.CyclesTotal,
		m.PointsTotal,
		m.RecordsPublished,
		m.CycleDuration,
		m.LastSuccess,
	)
	return m
}

// ObserveCycle records the outcome of a cycle that started at start.
func (m *Metrics) ObserveCycle(start time.Time, err error) {
	m.CycleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.CyclesTotal.WithLabelValues(ResultError).Inc()
		return
	}
	m.CyclesTotal.WithLabelValues(ResultSuccess).Inc()
	m.LastSuccess.SetToCurrentTime()
}

// ObservePoint records the outcome of a single metering point import.
func (m *Metrics) ObservePoint(result string) {
	m.PointsTotal.WithLabelValues(result).Inc()
}

// ObservePublished records the number of records published for a kind of
// statistic.
func (m *Metrics) ObservePublished(kind string, n int) {
	m.RecordsPublished.WithLabelValues(kind).Add(float64(n))
}
