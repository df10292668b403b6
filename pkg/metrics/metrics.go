// Package metrics exposes Prometheus metrics for the ingestion pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soundprediction/conceptgraph/pkg/merge"
)

// Batch outcomes.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Batch metrics
	Batches       *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	QueuedBatches prometheus.Gauge

	// Merge metrics
	NodesCreated  prometheus.Counter
	NodesResolved prometheus.Counter
	NodesDropped  prometheus.Counter
	EdgesCreated  prometheus.Counter
	EdgesSkipped  *prometheus.CounterVec
	MergeDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Document batches processed, by outcome and failing stage",
			},
			[]string{"status", "stage"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "End-to-end document batch duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		QueuedBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batches_queued",
				Help:      "Document batches waiting or running",
			},
		),
		NodesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_created_total",
				Help:      "Total number of nodes created",
			},
		),
		NodesResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_resolved_total",
				Help:      "Candidate nodes mapped onto existing nodes",
			},
		),
		NodesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_dropped_total",
				Help:      "Candidate nodes dropped for empty labels",
			},
		),
		EdgesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_created_total",
				Help:      "Total number of edges created",
			},
		),
		EdgesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "edges_skipped_total",
				Help:      "Candidate edges not persisted, by reason",
			},
			[]string{"reason"},
		),
		MergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "merge_duration_seconds",
				Help:      "Graph merge duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Batches,
		c.BatchDuration,
		c.QueuedBatches,
		c.NodesCreated,
		c.NodesResolved,
		c.NodesDropped,
		c.EdgesCreated,
		c.EdgesSkipped,
		c.MergeDuration,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveMerge implements merge.Recorder.
func (c *Collector) ObserveMerge(result *merge.Result, duration time.Duration, err error) {
	c.MergeDuration.Observe(duration.Seconds())
	if result == nil {
		return
	}
	c.NodesCreated.Add(float64(len(result.CreatedNodes)))
	c.NodesResolved.Add(float64(result.ResolvedNodes))
	c.NodesDropped.Add(float64(result.DroppedNodes))
	c.EdgesCreated.Add(float64(len(result.CreatedEdges)))
	c.EdgesSkipped.WithLabelValues("unresolved").Add(float64(result.SkippedEdges))
	c.EdgesSkipped.WithLabelValues("duplicate").Add(float64(result.DuplicateEdges))
}

// ObserveBatch records the outcome of one document batch. stage is empty for
// completed batches.
func (c *Collector) ObserveBatch(status, stage string, duration time.Duration) {
	c.Batches.WithLabelValues(status, stage).Inc()
	c.BatchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
