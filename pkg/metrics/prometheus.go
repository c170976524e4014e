package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CascadesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdconsole_cascades_total",
			Help: "Total number of status toggles by domain and outcome",
		},
		[]string{"domain", "outcome"},
	)

	CascadeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdconsole_cascade_mutations_total",
			Help: "Total number of record mutations issued by cascades",
		},
		[]string{"domain", "entity_type", "outcome"},
	)

	CascadeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdconsole_cascade_duration_seconds",
			Help:    "Time to persist a cascade",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"domain"},
	)

	DependentsResolved = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdconsole_dependents_resolved",
			Help:    "Number of dependents found per toggle request",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"domain"},
	)

	ConfirmationsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mdconsole_confirmations_pending",
			Help: "Toggles waiting for user confirmation",
		},
		[]string{"domain"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdconsole_upstream_requests_total",
			Help: "Requests sent to the master-data API by method and result class",
		},
		[]string{"method", "result"},
	)

	UpstreamRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdconsole_upstream_retries_total",
			Help: "Retried requests to the master-data API",
		},
		[]string{"method"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdconsole_http_requests_total",
			Help: "Console API requests by route and status class",
		},
		[]string{"route", "result"},
	)
)

// ResultClass buckets an HTTP status code for metric labels.
func ResultClass(code int) string {
	switch {
	case code == 0:
		return "network"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
