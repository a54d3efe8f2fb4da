package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publisher_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// result is one of: ok, invalid, error
	WizardStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_wizard_steps_total",
			Help: "Total number of wizard step submissions",
		},
		[]string{"step", "result"},
	)

	// result is one of: published, rejected, error
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_publish_total",
			Help: "Total number of publish attempts",
		},
		[]string{"result"},
	)

	MetadataSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_metadata_sync_total",
			Help: "Total number of catalog sync attempts",
		},
		[]string{"result"},
	)

	LegacyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_legacy_requests_total",
			Help: "Total number of legacy API requests",
		},
		[]string{"resource", "result"},
	)
)
