package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trivia_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// RequestInProgress counts HTTP requests currently being processed
	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trivia_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	// SessionTransitions counts lifecycle transitions by target status
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_session_transitions_total",
			Help: "Total number of game session lifecycle transitions",
		},
		[]string{"status"},
	)

	PlayersJoined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_players_joined_total",
			Help: "Total number of players that joined a game session",
		},
	)

	// AnswersSubmitted counts submissions by outcome: correct, wrong, duplicate, rejected
	AnswersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_answers_submitted_total",
			Help: "Total number of answer submissions by outcome",
		},
		[]string{"outcome"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_events_delivered_total",
			Help: "Total number of events queued to channel subscribers",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_events_dropped_total",
			Help: "Total number of events dropped for slow subscribers",
		},
		[]string{"event"},
	)

	SinkFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_event_sink_failures_total",
			Help: "Total number of failed event sink deliveries",
		},
	)

	// ChannelSubscribers tracks attached channel endpoints by role
	ChannelSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trivia_channel_subscribers",
			Help: "Number of endpoints attached to session channels",
		},
		[]string{"role"},
	)

	// StoreOperationDuration measures durable store operation duration
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trivia_store_operation_duration_seconds",
			Help:    "Durable store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	QuizCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_quiz_cache_hits_total",
			Help: "Total number of quiz cache hits",
		},
	)

	QuizCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_quiz_cache_misses_total",
			Help: "Total number of quiz cache misses",
		},
	)
)

// RecordStoreOperation records the duration of a durable store operation
func RecordStoreOperation(operation string, startTime time.Time) {
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
}
