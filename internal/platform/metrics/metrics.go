// Package metrics defines the Prometheus collectors shared by the
// comments service and exposes the /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event stream metrics
	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidhub_comment_stream_subscribers",
			Help: "Currently connected comment event stream subscribers",
		},
	)

	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_comment_events_published_total",
			Help: "Comment events published to the fan-out broker by type",
		},
		[]string{"type"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vidhub_comment_events_dropped_total",
			Help: "Comment events dropped because a subscriber channel was full",
		},
	)

	// Write API metrics
	CommentWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidhub_comment_writes_total",
			Help: "Comment write operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Register adds all collectors to the default registry.
// Call once from main; duplicate registration panics by design.
func Register() {
	prometheus.MustRegister(
		StreamSubscribers,
		EventsPublished,
		EventsDropped,
		CommentWrites,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
