// Package metrics exposes Prometheus counters and gauges for title rotation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	registry      *prometheus.Registry
	cyclesTotal   *prometheus.CounterVec
	updatesTotal  prometheus.Counter
	errorsTotal   prometheus.Counter
	queueLength   prometheus.Gauge
	requestsTotal *prometheus.CounterVec
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "yttitle_cycles_total",
		Help: "Reconciliation cycles by outcome",
	}, []string{"outcome"})
	updatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "yttitle_title_updates_total",
		Help: "Titles successfully pushed to the live broadcast",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "yttitle_errors_total",
		Help: "Cycles that ended with an error",
	})
	queueLength := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "yttitle_queue_length",
		Help: "Titles waiting in the queue",
	})
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "yttitle_http_requests_total",
		Help: "Control API requests by status class",
	}, []string{"code"})

	registry.MustRegister(cyclesTotal, updatesTotal, errorsTotal, queueLength, requestsTotal)

	return &Metrics{
		registry:      registry,
		cyclesTotal:   cyclesTotal,
		updatesTotal:  updatesTotal,
		errorsTotal:   errorsTotal,
		queueLength:   queueLength,
		requestsTotal: requestsTotal,
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, failed bool) {
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	if outcome == "updated" {
		m.updatesTotal.Inc()
	}
	if failed {
		m.errorsTotal.Inc()
	}
}

// SetQueueLength sets the queue length gauge.
func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
// updateGauges, when non-nil, runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
