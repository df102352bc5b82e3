// Package metrics holds the Prometheus collectors the core updates.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registrations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "registrations_total",
		Help:      "Registration attempts by result",
	}, []string{"result"})

	Cancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "cancellations_total",
		Help:      "Participations soft-cancelled",
	})

	PaymentsProvisioned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "payments_provisioned_total",
		Help:      "Payment provisioning calls by result (created/existing/error)",
	}, []string{"result"})

	PaymentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "payment_transitions_total",
		Help:      "Payment status changes by target status",
	}, []string{"status"})

	AttendanceMarks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "attendance_marks_total",
		Help:      "Attendance upserts by status",
	}, []string{"status"})

	WeatherFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "weather_fetches_total",
		Help:      "Weather source calls by result (ok/error/fallback)",
	}, []string{"result"})

	WeatherCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "club_events",
		Name:      "weather_cache_hits_total",
		Help:      "Current-weather reads served from the short-lived cache",
	})
)

var registerOnce sync.Once

// Register adds every collector to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			Registrations, Cancellations,
			PaymentsProvisioned, PaymentTransitions,
			AttendanceMarks,
			WeatherFetches, WeatherCacheHits,
		)
	})
}
