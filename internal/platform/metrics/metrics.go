package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the rundown gateway.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	pollCyclesTotal       prometheus.Counter
	pollFailuresTotal     prometheus.Counter
	resyncRequestsTotal   prometheus.Counter
	rankRebasesTotal      prometheus.Counter
	activeRundowns        prometheus.Gauge
	errorsTotal           prometheus.Counter
}

// New creates and registers Prometheus metrics for the gateway.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of HTTP requests received",
	})
	pollCyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_poll_cycles_total",
		Help: "Total number of completed watcher poll cycles",
	})
	pollFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_poll_failures_total",
		Help: "Total number of queues that failed to fetch during a poll cycle",
	})
	resyncRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_resync_requests_total",
		Help: "Total number of operator-triggered rundown resyncs",
	})
	rankRebasesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rank_rebases_total",
		Help: "Total number of forced integer rank recalculations",
	})
	activeRundowns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_rundowns",
		Help: "Number of rundowns currently tracked across all queues",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx) plus watcher warnings and errors",
	})

	registry.MustRegister(
		requestsTotal,
		pollCyclesTotal,
		pollFailuresTotal,
		resyncRequestsTotal,
		rankRebasesTotal,
		activeRundowns,
		errorsTotal,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		pollCyclesTotal:     pollCyclesTotal,
		pollFailuresTotal:   pollFailuresTotal,
		resyncRequestsTotal: resyncRequestsTotal,
		rankRebasesTotal:    rankRebasesTotal,
		activeRundowns:      activeRundowns,
		errorsTotal:         errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncPollCycles increments the completed poll cycle counter.
func (m *Metrics) IncPollCycles() {
	m.pollCyclesTotal.Inc()
}

// IncPollFailures increments the failed-queue counter.
func (m *Metrics) IncPollFailures() {
	m.pollFailuresTotal.Inc()
}

// IncResyncRequests increments the operator-triggered resync counter.
func (m *Metrics) IncResyncRequests() {
	m.resyncRequestsTotal.Inc()
}

// IncRankRebases increments the forced rank recalculation counter.
func (m *Metrics) IncRankRebases() {
	m.rankRebasesTotal.Inc()
}

// SetActiveRundowns sets the active rundowns gauge.
func (m *Metrics) SetActiveRundowns(n int) {
	m.activeRundowns.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active rundowns).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
