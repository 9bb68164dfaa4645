package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics owns a private registry so tests can build as many as they like
// without colliding on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests      *prometheus.CounterVec
	HTTPRequestErrors *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	RelayConnections prometheus.Gauge
	RelayRooms       prometheus.Gauge
	RelayDelivered   prometheus.Counter
	RelayDropped     prometheus.Counter
	RelayPublishErrs prometheus.Counter

	RideJoins   *prometheus.CounterVec
	MessagesOut prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of HTTP requests answered with 4xx or 5xx.",
		}, []string{"method", "path", "status", "error_type"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RelayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Live websocket connections.",
		}),
		RelayRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_rooms",
			Help: "Rooms with at least one subscriber.",
		}),
		RelayDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_delivered_total",
			Help: "Messages queued to a subscriber.",
		}),
		RelayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_dropped_total",
			Help: "Messages dropped because a subscriber queue was full.",
		}),
		RelayPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_publish_errors_total",
			Help: "Persisted messages that could not be handed to the broker.",
		}),
		RideJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ride_join_attempts_total",
			Help: "Ride join attempts by outcome.",
		}, []string{"outcome"}),
		MessagesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages persisted.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPRequestErrors,
		m.HTTPDuration,
		m.RelayConnections,
		m.RelayRooms,
		m.RelayDelivered,
		m.RelayDropped,
		m.RelayPublishErrs,
		m.RideJoins,
		m.MessagesOut,
	)
	return m
}
