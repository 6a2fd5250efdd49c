// Package metrics exposes Prometheus counters and gauges for a single
// emulator node, on an isolated registry so multiple nodes running in
// the same test process never collide on the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector a node updates during its event loop.
type Metrics struct {
	Registry *prometheus.Registry

	HelloSent     prometheus.Counter
	HelloReceived prometheus.Counter

	LSAOriginated  prometheus.Counter
	LSAFlooded     prometheus.Counter
	LSADroppedStale prometheus.Counter

	ForwardingTableRebuilds prometheus.Counter

	RouteTraceRequests prometheus.Counter
	RouteTraceReplies  prometheus.Counter

	NeighborsUp prometheus.Gauge
}

// New creates a Metrics instance with every collector registered on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		HelloSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_hello_sent_total",
			Help: "Total HELLO packets sent to direct neighbors.",
		}),
		HelloReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_hello_received_total",
			Help: "Total HELLO packets received from direct neighbors.",
		}),
		LSAOriginated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_lsa_originated_total",
			Help: "Total LSAs originated by this node.",
		}),
		LSAFlooded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_lsa_flooded_total",
			Help: "Total LSAs forwarded on to neighbors after ingestion.",
		}),
		LSADroppedStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_lsa_dropped_stale_total",
			Help: "Total LSAs dropped for carrying a stale sequence number.",
		}),
		ForwardingTableRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_forwarding_table_rebuilds_total",
			Help: "Total times the forwarding table was recomputed.",
		}),
		RouteTraceRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_route_trace_requests_total",
			Help: "Total route-trace (T) requests handled.",
		}),
		RouteTraceReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linkstate_route_trace_replies_total",
			Help: "Total route-trace (O) replies received, then delivered to the trace client or forwarded.",
		}),
		NeighborsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linkstate_neighbors_up",
			Help: "Current count of direct neighbors considered up.",
		}),
	}

	reg.MustRegister(
		m.HelloSent,
		m.HelloReceived,
		m.LSAOriginated,
		m.LSAFlooded,
		m.LSADroppedStale,
		m.ForwardingTableRebuilds,
		m.RouteTraceRequests,
		m.RouteTraceReplies,
		m.NeighborsUp,
	)

	return m
}

// Handler returns an http.Handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
