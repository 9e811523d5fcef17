package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crashdice"

// Metrics holds the prometheus collectors for bets, relay calls and HTTP
// requests. Each instance owns its registry so tests and embedded servers do
// not collide on the default one.
//
// All methods are safe on a nil receiver and do nothing.
type Metrics struct {
	registry        *prometheus.Registry
	betsTotal       *prometheus.CounterVec
	wageredTotal    prometheus.Counter
	relayDuration   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	sessionsCreated prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry, including the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		betsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_total",
			Help:      "Settled bets by roll mode and outcome.",
		}, []string{"mode", "outcome"}),
		wageredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagered_total",
			Help:      "Sum of all settled bet amounts.",
		}),
		relayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_request_duration_seconds",
			Help:      "Latency of relay operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Game server sessions issued.",
		}),
	}
	reg.MustRegister(
		m.betsTotal,
		m.wageredTotal,
		m.relayDuration,
		m.httpRequests,
		m.httpDuration,
		m.sessionsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBet records one settled bet.
func (m *Metrics) ObserveBet(mode string, won bool, amount float64) {
	if m == nil {
		return
	}
	outcome := "loss"
	if won {
		outcome = "win"
	}
	m.betsTotal.WithLabelValues(mode, outcome).Inc()
	if amount > 0 {
		m.wageredTotal.Add(amount)
	}
}

// ObserveRelay records the latency of one relay operation.
func (m *Metrics) ObserveRelay(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.relayDuration.WithLabelValues(op, status).Observe(elapsed.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SessionCreated counts one issued session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}
