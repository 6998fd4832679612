// Package metrics holds the Prometheus collectors exported on /metrics.
// All methods are safe on a nil *Metrics so services can run without them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkvault"

type Metrics struct {
	registry *prometheus.Registry

	requestDurations *prometheus.SummaryVec
	responseBytes    *prometheus.CounterVec
	linksIssued      *prometheus.CounterVec
	linkResolutions  *prometheus.CounterVec
	ingestions       *prometheus.CounterVec
	payments         *prometheus.CounterVec
	storedBytes      prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	httpLabels := []string{"method", "route", "status"}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestDurations: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Time spent answering HTTP requests.",
			},
			httpLabels,
		),
		responseBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_response_bytes_total",
				Help:      "Total volume of response payloads in bytes.",
			},
			httpLabels,
		),
		linksIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_issued_total",
				Help:      "Access links issued, by kind.",
			},
			[]string{"kind"},
		),
		linkResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_resolutions_total",
				Help:      "Access link resolutions, by outcome (active, expired, not_found).",
			},
			[]string{"outcome"},
		),
		ingestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestions_total",
				Help:      "URL ingestions, by source (internal, external) and outcome.",
			},
			[]string{"source", "outcome"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_confirmations_total",
				Help:      "Payment confirmations, by outcome.",
			},
			[]string{"outcome"},
		),
		storedBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stored_bytes_total",
				Help:      "Bytes written to blob storage for new objects.",
			},
		),
	}

	m.registry.MustRegister(
		m.requestDurations,
		m.responseBytes,
		m.linksIssued,
		m.linkResolutions,
		m.ingestions,
		m.payments,
		m.storedBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration, bytes int64) {
	if m == nil {
		return
	}
	m.requestDurations.WithLabelValues(method, route, status).Observe(d.Seconds())
	m.responseBytes.WithLabelValues(method, route, status).Add(float64(bytes))
}

func (m *Metrics) LinkIssued(kind string) {
	if m == nil {
		return
	}
	m.linksIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) LinkResolved(outcome string) {
	if m == nil {
		return
	}
	m.linkResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Ingested(source, outcome string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) PaymentConfirmed(outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) BytesStored(n int64) {
	if m == nil {
		return
	}
	m.storedBytes.Add(float64(n))
}
