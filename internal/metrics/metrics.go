// Package metrics holds the prometheus collectors for ingestion and
// embedding. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docgraph"

type Metrics struct {
	registry *prometheus.Registry

	nodesFlushed  *prometheus.CounterVec
	chunksCreated prometheus.Counter
	embeddings    *prometheus.CounterVec
	embedLatency  prometheus.Histogram
	jobs          *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodesFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_flushed_total",
			Help:      "Section nodes written to the graph, by rank label.",
		}, []string{"rank"}),
		chunksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_created_total",
			Help:      "Chunk nodes created by splitting oversized sections.",
		}),
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Embedding calls by outcome (ok, retry, error).",
		}, []string{"outcome"}),
		embedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Latency of a single embedding call.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished ingestion jobs by final status.",
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for a worker.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.nodesFlushed,
		m.chunksCreated,
		m.embeddings,
		m.embedLatency,
		m.jobs,
		m.queueDepth,
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) NodeFlushed(rank string) {
	if m == nil {
		return
	}
	m.nodesFlushed.WithLabelValues(rank).Inc()
}

func (m *Metrics) ChunksCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksCreated.Add(float64(n))
}

func (m *Metrics) Embedding(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.embedLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
