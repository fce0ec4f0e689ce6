package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the dispatch path.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	dispatchTotal         *prometheus.CounterVec
	providerSendDuration  *prometheus.HistogramVec
	fallbackTotal         *prometheus.CounterVec
	idempotencyTotal      *prometheus.CounterVec
	rateLimitDeniedTotal  *prometheus.CounterVec
	escalationTotal       *prometheus.CounterVec
	cacheUnavailableTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sendbridge",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "dispatch_total",
				Help:      "Dispatch outcomes by service and terminal status.",
			},
			[]string{"service", "status"},
		),
		providerSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sendbridge",
				Name:      "provider_send_duration_seconds",
				Help:      "Upstream provider send duration in seconds by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "provider_fallback_total",
				Help:      "Failovers to a fallback provider by service and failed provider.",
			},
			[]string{"service", "from_provider"},
		),
		idempotencyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "idempotency_total",
				Help:      "Idempotency decisions by outcome (replay, conflict, proceed).",
			},
			[]string{"outcome"},
		),
		rateLimitDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "rate_limit_denied_total",
				Help:      "Rate limit denials by service and scope.",
			},
			[]string{"service", "scope"},
		),
		escalationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "escalation_total",
				Help:      "Escalation alerts attempted by channel and result.",
			},
			[]string{"channel", "result"},
		),
		cacheUnavailableTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sendbridge",
				Name:      "idempotency_cache_unavailable_total",
				Help:      "Times the idempotency cache was unreachable and the configured degradation applied.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchTotal,
		m.providerSendDuration,
		m.fallbackTotal,
		m.idempotencyTotal,
		m.rateLimitDeniedTotal,
		m.escalationTotal,
		m.cacheUnavailableTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		m.httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}

func (m *Metrics) IncDispatch(service, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(service, status).Inc()
}

func (m *Metrics) ObserveProviderSendDuration(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerSendDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) IncFallback(service, fromProvider string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(service, fromProvider).Inc()
}

func (m *Metrics) IncIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRateLimitDenied(service, scope string) {
	if m == nil {
		return
	}
	m.rateLimitDeniedTotal.WithLabelValues(service, scope).Inc()
}

func (m *Metrics) IncEscalation(channel, result string) {
	if m == nil {
		return
	}
	m.escalationTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) IncCacheUnavailable() {
	if m == nil {
		return
	}
	m.cacheUnavailableTotal.Inc()
}
