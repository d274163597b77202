package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ride lifecycle metrics
	RidesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rides_total",
			Help: "Total number of rides that reached a terminal status",
		},
		[]string{"status", "initiator"},
	)

	ActiveRidesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_rides",
			Help: "Current number of live (non-terminal) rides",
		},
	)

	// Dispatch metrics
	OffersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_offers_sent_total",
			Help: "Total number of ride offers pushed to drivers",
		},
		[]string{"audience"},
	)

	AcceptConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_accept_conflicts_total",
			Help: "Total number of accepts rejected because the ride was no longer pending",
		},
	)

	QueueFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_queue_fallbacks_total",
			Help: "Total number of locally synthesized queue numbers issued on ledger failure",
		},
	)

	// Notification metrics
	NotificationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_notification_attempts_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"audience", "outcome"},
	)

	OfflineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_offline_queue_depth",
			Help: "Current number of admin notifications waiting for a session",
		},
	)

	// Recovery sweep metrics
	SweepRecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_sweep_recoveries_total",
			Help: "Total number of rides force-transitioned by the recovery sweep",
		},
		[]string{"reason"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_sweep_duration_seconds",
			Help:    "Recovery sweep pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transport metrics
	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dispatch_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"role"},
	)

	DriversOnlineGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_drivers_online",
			Help: "Current number of online drivers",
		},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"exchange", "status"},
	)

	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(exchange string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RabbitMQMessagesPublished.WithLabelValues(exchange, status).Inc()
}
