// Package metrics holds the Prometheus collectors shared by the HTTP layer,
// the notification fan-out and the letter sweeper. Labels are limited to
// route patterns, methods, status codes and notification types so
// cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	LettersDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "letters_delivered_total",
			Help: "Letters moved from scheduled to delivered.",
		},
	)

	SweepFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "letter_sweep_failures_total",
			Help: "Letter sweeps that returned an error.",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "letter_sweep_duration_seconds",
			Help:    "Duration of letter delivery sweeps in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Notifications handed to realtime and push delivery, by type.",
		},
		[]string{"type"},
	)

	PushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_failures_total",
			Help: "Push alerts that could not be sent.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration, HTTPInflight,
		LettersDelivered, SweepFailures, SweepDuration,
		NotificationsDispatched, PushFailures,
	)
}
