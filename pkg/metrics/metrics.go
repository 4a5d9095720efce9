package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// MessagesCreated counts created consent messages by delivery channel (link|direct|proximity).
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_messages_created_total",
			Help: "Total number of consent messages created",
		},
		[]string{"channel"},
	)

	// MessageResponses counts respond attempts by outcome
	// (accepted|rejected|not_found|expired|already_used|conflict|forbidden|error).
	MessageResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_message_responses_total",
			Help: "Total number of respond attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LinkResolutions counts share link lookups by outcome (ok|not_found|expired|already_used).
	LinkResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_link_resolutions_total",
			Help: "Total number of share link resolutions",
		},
		[]string{"outcome"},
	)

	// ProximitySessions counts proximity session events (created|attached|connected|fetched).
	ProximitySessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_proximity_session_events_total",
			Help: "Total number of proximity session events",
		},
		[]string{"event"},
	)

	// ActiveSessions tracks active refresh sessions (not expired/revoked).
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "acceptconnect_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// PushSubscribers tracks connected push notification websockets.
	PushSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "acceptconnect_push_subscribers",
			Help: "Number of connected push notification subscribers",
		},
	)

	// SweptRecords counts rows removed by maintenance sweeps by table.
	SweptRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acceptconnect_maintenance_swept_total",
			Help: "Rows removed by maintenance sweeps",
		},
		[]string{"table"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acceptconnect_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
