package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks export outcomes.
type Metrics struct {
	Exports  *prometheus.CounterVec
	Duration prometheus.Histogram
	Pages    prometheus.Histogram
}

// NewMetrics registers the export metrics with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "footprint_exports_total",
				Help: "Total number of document exports by result",
			},
			[]string{"result"},
		),
		Duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "footprint_export_duration_seconds",
				Help:    "Duration of document exports",
				Buckets: prometheus.DefBuckets,
			},
		),
		Pages: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "footprint_export_pages",
				Help:    "Number of pages in exported documents",
				Buckets: prometheus.LinearBuckets(1, 5, 10),
			},
		),
	}
}
