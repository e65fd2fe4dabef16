// Package metrics provides Prometheus instrumentation for the messaging
// service: connection and roster gauges, delivery counters, and HTTP latency
// histograms.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of live WebSocket
	// connections, registered or not.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_connections_total",
		Help: "Current number of live WebSocket connections",
	})

	// OnlineUsers tracks the size of the presence roster.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_online_users",
		Help: "Current number of users in the presence directory",
	})

	// DeliveriesTotal counts delivery attempts by outcome: "pushed" (sent to
	// a live local connection), "offline" (no connection, history only),
	// "remote" (handed to another instance), or "failed" (push error,
	// swallowed).
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_deliveries_total",
		Help: "Total message delivery attempts by outcome",
	}, []string{"outcome"})

	// RosterBroadcastsTotal counts roster snapshots broadcast to all
	// connections.
	RosterBroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dm_roster_broadcasts_total",
		Help: "Total users-online roster broadcasts",
	})

	// HTTPDuration records REST request latency in seconds.
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dm_http_request_duration_seconds",
		Help:    "REST request latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineUsers,
		DeliveriesTotal,
		RosterBroadcastsTotal,
		HTTPDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
