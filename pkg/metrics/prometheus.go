package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus exports operation counters, latency histograms, item counts and backend liveness.
type Prometheus struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	items      *prometheus.CounterVec
	backendUp  *prometheus.GaugeVec
}

// NewPrometheus creates a recorder on a private registry that also carries
// the Go runtime and process collectors.
func NewPrometheus(namespace string) *Prometheus {
	reg := prometheus.NewRegistry()

	p := &Prometheus{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Backend operations by operation, backend and status.",
		}, []string{"operation", "backend", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Backend operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "backend"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_items_total",
			Help:      "Items processed by backend operations.",
		}, []string{"operation", "backend"}),
		backendUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 when the last liveness probe of the backend succeeded.",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		p.operations,
		p.duration,
		p.items,
		p.backendUp,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) RecordOperation(op Operation) {
	p.operations.WithLabelValues(op.Name, op.Backend, op.Status).Inc()
	p.duration.WithLabelValues(op.Name, op.Backend).Observe(op.Duration.Seconds())
	if op.Items > 0 {
		p.items.WithLabelValues(op.Name, op.Backend).Add(float64(op.Items))
	}
}

func (p *Prometheus) SetBackendUp(backend string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	p.backendUp.WithLabelValues(backend).Set(v)
}

// Registry exposes the underlying registry for tests and additional collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
