// Package metrics exposes Prometheus instrumentation for the realtime core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections tracks open transport connections per channel.
	Connections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Open websocket connections per channel.",
	}, []string{"channel"})

	// EventsDelivered counts frames delivered to connections.
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_delivered_total",
		Help: "Frames delivered to connections per channel and event kind.",
	}, []string{"channel", "event"})

	// FramesDropped counts frames dropped because a connection's send buffer was full.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_frames_dropped_total",
		Help: "Frames dropped due to a full per-connection send buffer.",
	}, []string{"channel"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
