package bptree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is optional Prometheus instrumentation for a Tree, wired via
// WithMetrics. Attaching one costs a counter increment and a histogram
// observation per public operation; a Tree with no Metrics pays nothing
// beyond a nil check.
type Metrics struct {
	ops       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	size      prometheus.Gauge
	treeDepth prometheus.Gauge
}

// NewMetrics registers a Metrics set under the given namespace with the
// default Prometheus registerer. Callers that need an isolated registry
// (tests, multiple trees) should use NewMetricsWith instead.
func NewMetrics(namespace string) *Metrics {
	return newMetrics(namespace, promauto.With(prometheus.DefaultRegisterer))
}

// NewMetricsWith registers a Metrics set against a caller-supplied
// registerer, letting tests avoid collisions with the global registry.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	return newMetrics(namespace, promauto.With(reg))
}

func newMetrics(namespace string, f promauto.Factory) *Metrics {
	return &Metrics{
		ops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bptree_operations_total",
			Help:      "Dictionary facade operations, labeled by op and outcome.",
		}, []string{"op", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bptree_operation_latency_seconds",
			Help:      "Dictionary facade operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		size: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bptree_entries",
			Help:      "Current element count.",
		}),
		treeDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bptree_depth",
			Help:      "Current tree depth.",
		}),
	}
}

// observe starts a timer for op and returns a function the caller invokes
// with the resolved outcome label once the operation completes.
func (m *Metrics) observe(op string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		m.ops.WithLabelValues(op, outcome).Inc()
		m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// Report publishes tree's current count and depth as gauge samples. It is
// cheap (two atomic loads) and is meant to be called periodically, e.g.
// from the same goroutine that scrapes or pushes other process metrics.
func (t *Tree[K, V]) Report() {
	if t.metrics == nil {
		return
	}
	t.metrics.size.Set(float64(t.count.Load()))
	t.metrics.treeDepth.Set(float64(t.depth.Load()))
}
