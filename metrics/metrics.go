// Package metrics exposes a Prometheus registry of counters and gauges
// for a running controller session: lines acknowledged, RX buffer
// occupancy, reconnect counts, and status-poll latency. It only builds
// the registry and collectors — wiring an HTTP /metrics endpoint is left
// to the embedding application (e.g. cmd/cncctl).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector a Controller session reports to, the
// same "construct collectors, MustRegister them into one registry"
// pattern the pack's Prometheus usage follows.
type Registry struct {
	reg *prometheus.Registry

	LinesAcked      prometheus.Counter
	LineErrors      prometheus.Counter
	Reconnects      prometheus.Counter
	BufferOccupancy prometheus.Gauge
	PollLatency     prometheus.Histogram
}

// NewRegistry constructs a fresh, isolated registry (not the global
// default one) so an embedding application can mount it wherever it
// likes, or run several sessions side by side with independent metrics.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.LinesAcked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cncstream",
		Subsystem: "session",
		Name:      "lines_acked_total",
		Help:      "Total program lines acknowledged (ok) by the controller.",
	})
	r.LineErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cncstream",
		Subsystem: "session",
		Name:      "line_errors_total",
		Help:      "Total error:N responses received while streaming.",
	})
	r.Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cncstream",
		Subsystem: "session",
		Name:      "reconnects_total",
		Help:      "Total times the IO thread detected a lost connection.",
	})
	r.BufferOccupancy = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cncstream",
		Subsystem: "session",
		Name:      "rx_buffer_occupancy_bytes",
		Help:      "Bytes currently considered in flight in the firmware's RX buffer.",
	})
	r.PollLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cncstream",
		Subsystem: "session",
		Name:      "status_poll_latency_seconds",
		Help:      "Time between a status query byte being written and its response being parsed.",
		Buckets:   prometheus.DefBuckets,
	})

	r.reg.MustRegister(r.LinesAcked, r.LineErrors, r.Reconnects, r.BufferOccupancy, r.PollLatency)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an embedding
// application to serve over promhttp, without this package taking a
// dependency on net/http itself.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObservePollLatency is a small helper for timing a status round trip:
// defer metrics.ObservePollLatency(reg, time.Now())().
func ObservePollLatency(r *Registry, start time.Time) func() {
	return func() { r.PollLatency.Observe(time.Since(start).Seconds()) }
}
