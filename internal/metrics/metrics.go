package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the payout service
type Metrics struct {
	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Provider metrics
	ProviderErrorsTotal *prometheus.CounterVec
	TokenRefreshesTotal prometheus.Counter

	// Verification metrics
	VerificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "payout_service"
	}

	return &Metrics{
		DispatchTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of payout dispatch attempts",
			},
			[]string{"method", "status"},
		),

		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Duration of payout dispatches in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		ProviderErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of errors by provider and error kind",
			},
			[]string{"provider", "kind"},
		),

		TokenRefreshesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of OAuth token fetches",
			},
		),

		VerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Total number of payout status verifications",
			},
			[]string{"provider", "status"},
		),
	}
}

// RecordDispatch records one dispatch attempt
func (m *Metrics) RecordDispatch(method, status, provider string, durationSeconds float64) {
	m.DispatchTotal.WithLabelValues(method, status).Inc()
	m.DispatchDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordProviderError records a provider error by taxonomy kind
func (m *Metrics) RecordProviderError(provider, kind string) {
	m.ProviderErrorsTotal.WithLabelValues(provider, kind).Inc()
}

// RecordTokenRefresh records an OAuth token fetch
func (m *Metrics) RecordTokenRefresh() {
	m.TokenRefreshesTotal.Inc()
}

// RecordVerification records a status verification outcome
func (m *Metrics) RecordVerification(provider, status string) {
	m.VerificationsTotal.WithLabelValues(provider, status).Inc()
}
