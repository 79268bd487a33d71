package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtb_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtb_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtb_booking_transitions_total",
			Help: "Booking state changes by target status",
		},
		[]string{"status"},
	)

	SeatLockConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_seat_lock_conflicts_total",
			Help: "Lock attempts rejected because a seat was not available",
		},
	)

	ExpiredLocksReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_expired_locks_reclaimed_total",
			Help: "Show seats returned to AVAILABLE after their lock expired",
		},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtb_event_publish_failures_total",
			Help: "Booking events that could not be published",
		},
		[]string{"event"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtb_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
