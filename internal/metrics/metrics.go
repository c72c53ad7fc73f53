// Package metrics holds the Prometheus collectors of the server on a private
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodie/internal/core"
	"foodie/internal/source"
)

const namespace = "foodie"

type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	upstreamDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Duration of data source fetches by backend, operation and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend", "op", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Source cache lookups by operation and result.",
		}, []string{"op", "result"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.upstreamDuration,
		m.cacheLookups,
		m.loginAttempts,
	)
	return m
}

// Registry returns the private registry, for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstream(backend, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamDuration.WithLabelValues(backend, op, outcome).Observe(d.Seconds())
}

func (m *Metrics) CacheHit(op string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(op, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(op string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(op, "miss").Inc()
	}
}

// LoginAttempt records a login outcome such as "success" or
// "invalid_password".
func (m *Metrics) LoginAttempt(outcome string) {
	if m != nil {
		m.loginAttempts.WithLabelValues(outcome).Inc()
	}
}

type instrumented struct {
	next    source.Source
	backend string
	m       *Metrics
}

// Source wraps src so every fetch is timed under the backend label.
func Source(src source.Source, backend string, m *Metrics) source.Source {
	if m == nil {
		return src
	}
	return &instrumented{next: src, backend: backend, m: m}
}

func (s *instrumented) ListRecords(ctx context.Context) ([]core.Row, error) {
	start := time.Now()
	rows, err := s.next.ListRecords(ctx)
	s.m.ObserveUpstream(s.backend, "records", time.Since(start), err)
	return rows, err
}

func (s *instrumented) ListRestaurants(ctx context.Context) ([]core.Row, error) {
	start := time.Now()
	rows, err := s.next.ListRestaurants(ctx)
	s.m.ObserveUpstream(s.backend, "restaurants", time.Since(start), err)
	return rows, err
}
