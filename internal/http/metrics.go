// Package http provides the metrics, status and health endpoints of the collector.
package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Metrics holds all Prometheus metrics for the collector. It implements
// pipeline.Observer.
type Metrics struct {
	// Upstream fetch metrics
	FetchesTotal   *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	RecordsFetched *prometheus.CounterVec

	// Rate limiting and cache metrics
	CacheHitsTotal *prometheus.CounterVec
	CooldownsTotal *prometheus.CounterVec

	LastFetchTimestamp *prometheus.GaugeVec

	// Database metrics
	DBOperationsTotal  *prometheus.CounterVec
	RecordsStoredTotal *prometheus.GaugeVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reforecast_fetches_total",
				Help: "Total number of upstream fetches by resource and status",
			},
			[]string{"resource", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reforecast_fetch_duration_seconds",
				Help:    "Duration of a complete sliced fetch in seconds",
				Buckets: []float64{0.5, 1, 5, 30, 60, 300, 900, 3600, 14400},
			},
			[]string{"resource"},
		),
		RecordsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reforecast_records_fetched_total",
				Help: "Total number of flattened records fetched by resource",
			},
			[]string{"resource"},
		),
		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reforecast_cache_hits_total",
				Help: "Requests served from an already stored dataset",
			},
			[]string{"resource"},
		),
		CooldownsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reforecast_cooldowns_total",
				Help: "Requests refused because the resource was called too recently",
			},
			[]string{"resource"},
		),
		LastFetchTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reforecast_last_fetch_timestamp",
				Help: "Timestamp of the last successful fetch",
			},
			[]string{"resource"},
		),
		DBOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reforecast_db_operations_total",
				Help: "Total number of database operations by type and status",
			},
			[]string{"operation", "status"},
		),
		RecordsStoredTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reforecast_records_stored_total",
				Help: "Number of records stored in the database by resource",
			},
			[]string{"resource"},
		),
	}
}

// ObserveFetch records the outcome of an upstream fetch.
func (m *Metrics) ObserveFetch(kind resource.Kind, success bool, duration time.Duration, records int) {
	status := "success"
	if !success {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(kind.Name(), status).Inc()
	m.FetchDuration.WithLabelValues(kind.Name()).Observe(duration.Seconds())
	if success {
		m.RecordsFetched.WithLabelValues(kind.Name()).Add(float64(records))
		m.LastFetchTimestamp.WithLabelValues(kind.Name()).Set(float64(time.Now().Unix()))
	}
}

// ObserveCacheHit records a request served from storage.
func (m *Metrics) ObserveCacheHit(kind resource.Kind) {
	m.CacheHitsTotal.WithLabelValues(kind.Name()).Inc()
}

// ObserveCooldown records a request refused by the rate limiter.
func (m *Metrics) ObserveCooldown(kind resource.Kind) {
	m.CooldownsTotal.WithLabelValues(kind.Name()).Inc()
}

// RecordDBOperation records a database operation metric.
func (m *Metrics) RecordDBOperation(operation, status string) {
	m.DBOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRecordsStored records the number of records stored for a resource.
func (m *Metrics) RecordRecordsStored(kind resource.Kind, count float64) {
	m.RecordsStoredTotal.WithLabelValues(kind.Name()).Set(count)
}
