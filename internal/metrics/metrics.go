// Package metrics exposes cascade counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entomo/internal/cascade"
)

const namespace = "entomo"

// Collector records cascade outcomes on its own registry. It implements
// cascade.Recorder.
type Collector struct {
	registry         *prometheus.Registry
	outcomes         *prometheus.CounterVec
	secondaryLatency *prometheus.HistogramVec
	sessions         prometheus.Gauge
}

// New creates a collector with Go runtime and process metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "requests_total",
			Help:      "Classification requests by outcome (primary, secondary, fallback, rejected).",
		}, []string{"outcome"}),
		secondaryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "secondary_duration_seconds",
			Help:      "Latency of vision-language model calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Classification sessions held by the HTTP host.",
		}),
	}
	c.registry.MustRegister(
		c.outcomes,
		c.secondaryLatency,
		c.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, outcome := range []cascade.Outcome{cascade.OutcomePrimary, cascade.OutcomeSecondary, cascade.OutcomeFallback, cascade.OutcomeRejected} {
		c.outcomes.WithLabelValues(string(outcome))
	}
	return c
}

// ObserveOutcome counts a finished request.
func (c *Collector) ObserveOutcome(outcome cascade.Outcome) {
	c.outcomes.WithLabelValues(string(outcome)).Inc()
}

// ObserveSecondary records one vision-language model call.
func (c *Collector) ObserveSecondary(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.secondaryLatency.WithLabelValues(result).Observe(elapsed.Seconds())
}

// SetSessions reports the number of live sessions.
func (c *Collector) SetSessions(n int) {
	c.sessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
