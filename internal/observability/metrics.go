package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ryde"

var (
	SessionsActive      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active", Help: "Live websocket sessions on this replica"})
	HandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "handshake_rejections_total", Help: "Rejected session handshakes by close code"},
		[]string{"code"},
	)

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_delivered_total", Help: "Event frames queued to a session"},
		[]string{"kind"},
	)
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_dropped_total", Help: "Event frames dropped because a session buffer was full or closed"},
		[]string{"kind"},
	)
	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "inbound_messages_total", Help: "Inbound session messages by type and outcome"},
		[]string{"type", "outcome"},
	)

	RidesCreated       = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "rides_created_total", Help: "Total rides requested"})
	DispatchCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_candidates",
		Help:      "Drivers notified per dispatch",
		Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
	AcceptOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "accept_outcomes_total", Help: "Accept attempts by outcome"},
		[]string{"outcome"},
	)
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "status_transitions_total", Help: "Applied and rejected ride status transitions"},
		[]string{"to", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
