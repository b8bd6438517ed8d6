package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the ephemeral chat server.
//
// Naming convention: namespace_subsystem_name
// - namespace: impermachat (application-level grouping)
// - subsystem: room, sse, bus, chat (feature-level grouping)
//
// Metric Types:
// - Gauge: current state (rooms, streams)
// - Counter: cumulative events (publishes, drops, expiries)
// - Histogram: distributions (message sizes)

var (
	// ActiveRooms tracks the current number of live rooms in the registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "impermachat",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms",
	})

	// RoomsExpired counts rooms evicted by the janitor.
	RoomsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "impermachat",
		Subsystem: "room",
		Name:      "rooms_expired_total",
		Help:      "Total rooms evicted after their expiration passed",
	})

	// ActiveStreams tracks the current number of open SSE subscriptions.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "impermachat",
		Subsystem: "sse",
		Name:      "streams_active",
		Help:      "Current number of open SSE streams",
	})

	// BusEventsPublished counts action events published on room buses.
	BusEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "impermachat",
		Subsystem: "bus",
		Name:      "events_published_total",
		Help:      "Total action events published, by action",
	}, []string{"action"})

	// BusEventsDropped counts events lost to full subscriber buffers.
	BusEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "impermachat",
		Subsystem: "bus",
		Name:      "events_dropped_total",
		Help:      "Total action events dropped by lagging subscribers, by action",
	}, []string{"action"})

	// MessageBytes tracks submitted message sizes, including the ones that
	// exceed the cap and get replaced.
	MessageBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "impermachat",
		Subsystem: "chat",
		Name:      "message_bytes",
		Help:      "Size distribution of submitted chat messages in bytes",
		Buckets:   []float64{16, 64, 256, 1024, 4000, 16384},
	})
)
