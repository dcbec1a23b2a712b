package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the receiver daemon
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhooksReceivedTotal *prometheus.CounterVec
	WebhooksRejectedTotal *prometheus.CounterVec
	RateLimitDropsTotal   prometheus.Counter

	// Provisioning metrics
	ProvisionOperationsTotal *prometheus.CounterVec
	ProvisionDuration        *prometheus.HistogramVec
	ProvisionedDomainsTotal  prometheus.Gauge

	// Bunny API metrics
	BunnyAPIRequestsTotal  *prometheus.CounterVec
	BunnyAPIRequestSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whm2bunny_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whm2bunny_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		WebhooksReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whm2bunny_webhooks_received_total",
				Help: "Total number of accepted webhook events",
			},
			[]string{"event"},
		),
		WebhooksRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whm2bunny_webhooks_rejected_total",
				Help: "Total number of rejected webhook requests",
			},
			[]string{"reason"},
		),
		RateLimitDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "whm2bunny_ratelimit_drops_total",
				Help: "Total number of requests dropped by rate limiting",
			},
		),
		ProvisionOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whm2bunny_provision_operations_total",
				Help: "Total number of provisioning operations",
			},
			[]string{"operation", "status"},
		),
		ProvisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whm2bunny_provision_duration_seconds",
				Help:    "Provisioning operation duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		ProvisionedDomainsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "whm2bunny_provisioned_domains_total",
				Help: "Number of domains currently provisioned",
			},
		),
		BunnyAPIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whm2bunny_bunny_api_requests_total",
				Help: "Total number of Bunny.net API requests",
			},
			[]string{"operation", "status"},
		),
		BunnyAPIRequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "whm2bunny_bunny_api_request_duration_seconds",
				Help:    "Bunny.net API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WebhooksReceivedTotal,
		m.WebhooksRejectedTotal,
		m.RateLimitDropsTotal,
		m.ProvisionOperationsTotal,
		m.ProvisionDuration,
		m.ProvisionedDomainsTotal,
		m.BunnyAPIRequestsTotal,
		m.BunnyAPIRequestSeconds,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, httpStatusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveProvision records metrics for a completed provisioning operation
func (m *Metrics) ObserveProvision(operation, status string, duration time.Duration) {
	m.ProvisionOperationsTotal.WithLabelValues(operation, status).Inc()
	m.ProvisionDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveBunnyRequest records metrics for a completed Bunny API call
func (m *Metrics) ObserveBunnyRequest(operation string, status int, duration time.Duration) {
	m.BunnyAPIRequestsTotal.WithLabelValues(operation, httpStatusLabel(status)).Inc()
	m.BunnyAPIRequestSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
