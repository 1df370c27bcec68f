package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IngestionOutcomes  *prometheus.CounterVec
	IngestionConflicts *prometheus.CounterVec
	TokenRefreshes     *prometheus.CounterVec
	ProviderRequests   *prometheus.CounterVec
	ProviderLatency    *prometheus.HistogramVec
}

func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		IngestionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_outcomes_total",
			Help:      "Inbound channel messages by provider and reservation outcome.",
		}, []string{"provider", "outcome"}),
		IngestionConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_cas_conflicts_total",
			Help:      "Conditional connection writes that lost a race, by provider.",
		}, []string{"provider"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Calendar token refreshes by trigger and result.",
		}, []string{"trigger", "result"}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Calendar provider requests by method and status class.",
		}, []string{"method", "status"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_ms",
			Help:      "Calendar provider request latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"method"}),
	}
}

func (m *Metrics) ObserveIngestion(provider, outcome string) {
	if m == nil {
		return
	}
	m.IngestionOutcomes.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveIngestionConflict(provider string) {
	if m == nil {
		return
	}
	m.IngestionConflicts.WithLabelValues(provider).Inc()
}

func (m *Metrics) ObserveTokenRefresh(trigger, result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) ObserveProviderRequest(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(method, status).Inc()
	m.ProviderLatency.WithLabelValues(method).Observe(float64(d.Milliseconds()))
}

func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
