package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	QueryErrors     *prometheus.CounterVec
	SnapshotRows    *prometheus.GaugeVec
	SkippedDates    *prometheus.GaugeVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// NewMetrics creates and registers all marketboard metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketboard_http_request_duration_seconds",
				Help:    "Duration of KPI API requests",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"route", "code"},
		),

		QueryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketboard_kpi_query_errors_total",
				Help: "Total KPI query failures by operation",
			},
			[]string{"op"},
		),

		SnapshotRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketboard_snapshot_rows",
				Help: "Rows held by the current snapshot per table",
			},
			[]string{"table"},
		),

		SkippedDates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketboard_snapshot_skipped_dates",
				Help: "Snapshot rows excluded from date filters due to undecodable date_id",
			},
			[]string{"table"},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketboard_kpi_cache_hits_total",
				Help: "Total KPI cache hits",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketboard_kpi_cache_misses_total",
				Help: "Total KPI cache misses",
			},
		),
	}

	m.registry.MustRegister(
		m.RequestDuration, m.QueryErrors, m.SnapshotRows,
		m.SkippedDates, m.CacheHits, m.CacheMisses,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot publishes row and skipped-date gauges for a freshly
// loaded snapshot.
func (m *Metrics) ObserveSnapshot(products, sales, skippedProducts, skippedSales int) {
	m.SnapshotRows.WithLabelValues("products").Set(float64(products))
	m.SnapshotRows.WithLabelValues("sales").Set(float64(sales))
	m.SkippedDates.WithLabelValues("products").Set(float64(skippedProducts))
	m.SkippedDates.WithLabelValues("sales").Set(float64(skippedSales))
}
