// Package metrics declares the Prometheus series exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts inbound chat messages by type.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_messages_total",
		Help: "Total messages received.",
	}, []string{"type"})
	// CommandsTotal counts executed chat commands.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_commands_total",
		Help: "Total commands executed.",
	}, []string{"command"})
	// ErrorsTotal counts errors by kind.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_errors_total",
		Help: "Total errors.",
	}, []string{"type"})
	// TrackRequests counts tracking requests.
	TrackRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_track_requests_total",
		Help: "Total tracking requests.",
	})
	// TrackDuration observes end-to-end tracking request duration.
	TrackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_track_duration_seconds",
		Help:    "Tracking request duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
	// ExtractionDuration observes browser-session duration per extraction.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_extraction_duration_seconds",
		Help:    "Headless browser extraction duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
	// ActiveSubscribers gauges subscribers with any history.
	ActiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_active_subscribers",
		Help: "Number of subscribers with search history.",
	})
	// ScheduledChecks counts timer-fired checks by outcome.
	ScheduledChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_scheduled_checks_total",
		Help: "Total scheduled checks.",
	}, []string{"status"})

	// GeocacheHits counts geocode cache hits.
	GeocacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_geocache_hits_total",
		Help: "Total geocode cache hits.",
	})
	// GeocacheMisses counts geocode cache misses.
	GeocacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_geocache_misses_total",
		Help: "Total geocode cache misses.",
	})
	// GeocacheSize gauges the number of cached entries.
	GeocacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracker_geocache_size",
		Help: "Number of entries in the geocode cache.",
	})
	// GeocodingDuration observes provider call duration.
	GeocodingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_geocoding_duration_seconds",
		Help:    "Geocoding provider request duration.",
		Buckets: prometheus.DefBuckets,
	})
)
