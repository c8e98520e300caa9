package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Callback metrics
	CallbacksTotal   *prometheus.CounterVec
	CallbackDuration *prometheus.HistogramVec

	// Token validation metrics
	TokenValidationsTotal   *prometheus.CounterVec
	CacheLookupsTotal       *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Rate limiting
	RateLimitRejections prometheus.Counter

	// Order finalization
	OrdersFinalized *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := prometheus.WrapRegistererWith(nil, reg)

	m := &Metrics{
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Total number of payment callbacks by outcome",
			},
			[]string{"outcome"},
		),
		CallbackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "callback_duration_seconds",
				Help:      "End-to-end callback reconciliation duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"outcome"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_validations_total",
				Help:      "Total number of token validations by source and result",
			},
			[]string{"source", "result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_lookups_total",
				Help:      "Token cache lookups by result (hit, miss, bypass)",
			},
			[]string{"result"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Provider token validation request duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"status"},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Total number of callbacks rejected by the local rate limiter",
			},
		),
		OrdersFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_finalized_total",
				Help:      "Orders moved to a terminal payment state by result (paid, on_hold)",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// Register all collectors
	factory.MustRegister(
		m.CallbacksTotal,
		m.CallbackDuration,
		m.TokenValidationsTotal,
		m.CacheLookupsTotal,
		m.ProviderRequestDuration,
		m.RateLimitRejections,
		m.OrdersFinalized,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}
