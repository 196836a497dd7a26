// Package metrics holds the Prometheus collectors shared by the hub, the
// ingest paths and the HTTP layer. They are registered on the default
// registry and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LocationsIngested counts accepted location events by source (http, mqtt).
	LocationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveloc_locations_ingested_total",
			Help: "Location events accepted for broadcast, by source",
		},
		[]string{"source"},
	)

	// LocationsRejected counts events refused at ingest, by source and reason.
	LocationsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveloc_locations_rejected_total",
			Help: "Location events rejected at ingest, by source and reason",
		},
		[]string{"source", "reason"},
	)

	// BroadcastsDropped counts frames not delivered because a queue was full.
	BroadcastsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveloc_broadcasts_dropped_total",
			Help: "Frames dropped because the hub or a client buffer was full",
		},
		[]string{"stage"},
	)

	// ConnectedClients tracks open WebSocket connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveloc_ws_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	// JoinedClients tracks clients that have joined the analytics channel.
	JoinedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveloc_ws_joined_clients",
			Help: "Clients joined to the analytics channel",
		},
	)

	// TrackedUsers tracks the number of users with a last known position.
	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveloc_tracked_users",
			Help: "Users with a last known position",
		},
	)

	// HTTPRequestDuration observes API latency by route and status class.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveloc_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)
)
