// Package metrics exposes Prometheus counters/gauges for Flodgatt's
// connection and fan-out state, and implements streaming.Recorder so
// the SubscriptionManager can report into it without an import cycle.
// Built on the promauto idiom (prometheus/client_golang).
package metrics

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flodgatt/flodgatt/internal/timeline"
)

var (
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flodgatt_connections_active",
			Help: "Number of currently open client connections",
		},
		[]string{"transport"}, // ws, sse
	)

	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_connections_total",
			Help: "Total number of client connections accepted",
		},
		[]string{"transport"},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_connections_rejected_total",
			Help: "Total number of client connections rejected",
		},
		[]string{"reason"}, // unauthenticated, rate_limited, bad_request
	)

	TimelinesSubscribed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flodgatt_timelines_subscribed",
			Help: "Number of timelines currently SUBSCRIBEd to Redis",
		},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_events_delivered_total",
			Help: "Total number of events delivered to a client channel",
		},
		[]string{"stream"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_events_dropped_total",
			Help: "Total number of events dropped because a client channel was full",
		},
		[]string{"stream"},
	)

	EventsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_events_filtered_total",
			Help: "Total number of events suppressed by the per-client filter pipeline",
		},
		[]string{"reason"}, // language, involved_user, blocking_user, domain_block
	)

	RedisReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flodgatt_redis_reconnects_total",
			Help: "Total number of times the Redis connection was re-established",
		},
	)

	RedisParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flodgatt_redis_parse_errors_total",
			Help: "Total number of RESP frame parse errors recovered via resync",
		},
		[]string{"kind"},
	)
)

// Recorder implements streaming.Recorder, translating SubscriptionManager
// lifecycle callbacks into Prometheus updates.
type Recorder struct{}

func NewRecorder() Recorder { return Recorder{} }

func (Recorder) TimelineSubscribed(timeline.Timeline)   { TimelinesSubscribed.Inc() }
func (Recorder) TimelineUnsubscribed(timeline.Timeline) { TimelinesSubscribed.Dec() }

func (Recorder) EventDelivered(tl timeline.Timeline) {
	EventsDelivered.WithLabelValues(streamLabel(tl)).Inc()
}

func (Recorder) EventDropped(tl timeline.Timeline) {
	EventsDropped.WithLabelValues(streamLabel(tl)).Inc()
}

func (Recorder) RedisReconnected() { RedisReconnects.Inc() }

func streamLabel(tl timeline.Timeline) string {
	switch tl.Stream.Kind() {
	case timeline.StreamPublic:
		return "public"
	case timeline.StreamUser:
		return "user"
	case timeline.StreamHashtag:
		return "hashtag"
	case timeline.StreamList:
		return "list"
	case timeline.StreamDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// RecordFilterDrop increments the filtered-event counter for reason.
func RecordFilterDrop(reason string) { EventsFiltered.WithLabelValues(reason).Inc() }

// RecordRedisParseError increments the parse-error counter for kind.
func RecordRedisParseError(kind string) { RedisParseErrors.WithLabelValues(kind).Inc() }

// RecordConnectionOpened tracks a newly accepted client connection.
func RecordConnectionOpened(transport string) {
	ConnectionsTotal.WithLabelValues(transport).Inc()
	ConnectionsActive.WithLabelValues(transport).Inc()
}

// RecordConnectionClosed tracks a client connection going away.
func RecordConnectionClosed(transport string) {
	ConnectionsActive.WithLabelValues(transport).Dec()
}

// RecordConnectionRejected tracks a connection refused before upgrade.
func RecordConnectionRejected(reason string) {
	ConnectionsRejected.WithLabelValues(reason).Inc()
}

// NewConnectionID returns an identifier for correlating a single client
// connection's log lines (accept, per-event warnings, close) without
// exposing the access token or remote address.
func NewConnectionID() string { return uuid.NewString() }
