// Package metrics holds the prometheus collectors exported by the OPQ services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "opq"

// Drop reasons recorded on RecordsDropped
const (
	ReasonInvalid    = "invalid"
	ReasonUnknownBox = "unknown_box"
	ReasonDecode     = "decode"
)

// Metrics bundles the collectors of one process. Each instance owns its
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	BatchesReceived prometheus.Counter
	BatchesFailed   prometheus.Counter
	RecordsStored   prometheus.Counter
	RecordsDropped  *prometheus.CounterVec
	InsertDuration  prometheus.Histogram
	RollupDuration  *prometheus.HistogramVec
	RollupErrors    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the
// Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BatchesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_received_total",
			Help:      "Trend batches taken off the queue.",
		}),
		BatchesFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batches_failed_total",
			Help:      "Trend batches handed back to the queue for redelivery.",
		}),
		RecordsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_stored_total",
			Help:      "Trend records written to the store.",
		}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_dropped_total",
			Help:      "Trend records discarded before storage, by reason.",
		}, []string{"reason"}),
		InsertDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "insert_duration_seconds",
			Help:      "Latency of one batch insert.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		RollupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "duration_seconds",
			Help:      "Latency of rollup queries, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		RollupErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollup",
			Name:      "errors_total",
			Help:      "Failed rollup queries, by kind.",
		}, []string{"kind"}),
	}
}

// ObserveRollup records the latency of one rollup query started at start
func (m *Metrics) ObserveRollup(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RollupDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		m.RollupErrors.WithLabelValues(kind).Inc()
	}
}

// Gatherer exposes the registry for scraping and tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
