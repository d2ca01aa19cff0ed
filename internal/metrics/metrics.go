// Package metrics holds the Prometheus collectors for the client core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for session and gateway activity.
type Metrics struct {
	SessionTransitions *prometheus.CounterVec
	AuthAttempts       *prometheus.CounterVec
	BootstrapDuration  prometheus.Histogram
	StaleCredentials   prometheus.Counter
	APIRequestDuration *prometheus.HistogramVec
	PriceCacheHits     prometheus.Counter
	PriceCacheMisses   prometheus.Counter
}

// New registers the collectors on reg and returns them.
//
// Pass prometheus.NewRegistry() in tests so repeated construction never trips
// over duplicate registration on the global registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clint_session_transitions_total",
			Help: "Session state transitions by source and target phase",
		}, []string{"from", "to"}),
		AuthAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clint_auth_attempts_total",
			Help: "Login/signup/profile operations by outcome",
		}, []string{"operation", "outcome"}),
		BootstrapDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clint_bootstrap_duration_ms",
			Help:    "Time spent resolving the stored credential at startup in milliseconds",
			Buckets: []float64{1, 5, 25, 100, 250, 500, 1000, 2500, 5000, 15000},
		}),
		StaleCredentials: f.NewCounter(prometheus.CounterOpts{
			Name: "clint_stale_credentials_total",
			Help: "Stored credentials discarded because the backend rejected them",
		}),
		APIRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clint_api_request_duration_ms",
			Help:    "Gateway request latency in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "path", "outcome"}),
		PriceCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "clint_price_cache_hits_total",
			Help: "Price lookups served from cache",
		}),
		PriceCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "clint_price_cache_misses_total",
			Help: "Price lookups that went to the upstream feed",
		}),
	}
}
