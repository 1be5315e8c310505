package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed by the auth service.
type Metrics struct {
	registry *prometheus.Registry

	// Authentication metrics
	LoginsTotal        *prometheus.CounterVec
	RegistrationsTotal *prometheus.CounterVec
	TokensIssuedTotal  prometheus.Counter
	TokensRevokedTotal *prometheus.CounterVec

	// Token validation metrics
	ValidationsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
	CacheErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the given
// registry. A nil registry creates a private one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minidex_auth_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minidex_auth_registrations_total",
				Help: "Total number of registration requests",
			},
			[]string{"status"},
		),
		TokensIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minidex_auth_tokens_issued_total",
				Help: "Total number of access tokens issued",
			},
		),
		TokensRevokedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minidex_auth_tokens_revoked_total",
				Help: "Total number of access tokens revoked",
			},
			[]string{"scope"}, // single | all
		),
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minidex_auth_token_validations_total",
				Help: "Total number of bearer token validations",
			},
			[]string{"outcome"}, // valid | absent | expired | revoked | error
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minidex_auth_cache_hits_total",
				Help: "Total number of principal cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "minidex_auth_cache_misses_total",
				Help: "Total number of principal cache misses",
			},
		),
		CacheErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minidex_auth_cache_errors_total",
				Help: "Total number of cache operation failures (recovered locally)",
			},
			[]string{"operation"}, // get | set | delete
		),
	}

	registry.MustRegister(
		m.LoginsTotal,
		m.RegistrationsTotal,
		m.TokensIssuedTotal,
		m.TokensRevokedTotal,
		m.ValidationsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheErrorsTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
