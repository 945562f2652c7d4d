package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RentalsBookedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentals_booked_total",
		Help: "Total number of rentals booked",
	})

	BookingConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_conflicts_total",
		Help: "Total number of bookings rejected because the dates were taken",
	}, []string{"stage"})

	BookingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_latency_seconds",
		Help:    "Latency of rental booking",
		Buckets: prometheus.DefBuckets,
	})

	AvailabilityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_checks_total",
		Help: "Total number of range availability checks",
	}, []string{"result"})

	CalendarCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_cache_requests_total",
		Help: "Month calendar cache lookups",
	}, []string{"result"})

	ReservationsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_released_total",
		Help: "Total number of reservation marks released",
	})

	RentalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_transitions_total",
		Help: "Total number of rental status transitions",
	}, []string{"status"})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"target", "method"})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sales recorded",
	})

	RentalsOverdue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rentals_overdue",
		Help: "Open rentals past their end date at the last scan",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
