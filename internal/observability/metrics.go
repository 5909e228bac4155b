package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/upb/ai-dispatcher/services/workerpool"
)

const namespace = "ai_dispatcher"

// Metrics holds the dispatcher collectors, registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	// DispatchesTotal counts finished calls by provider and outcome.
	DispatchesTotal *prometheus.CounterVec

	// DispatchDuration tracks end-to-end call latency in seconds.
	DispatchDuration *prometheus.HistogramVec

	// DeliveriesTotal counts delivered responses by form (inline or file).
	DeliveriesTotal *prometheus.CounterVec

	// InitializationsTotal counts provider initializations by result.
	InitializationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		DispatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_requests_total",
				Help:      "Total number of dispatched queries by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "End-to-end dispatch latency in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		DeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_deliveries_total",
				Help:      "Total number of delivered responses by form.",
			},
			[]string{"form"},
		),
		InitializationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_initializations_total",
				Help:      "Total number of provider initializations by result.",
			},
			[]string{"provider", "result"},
		),
	}
}

// ObserveDispatch records one finished call
func (m *Metrics) ObserveDispatch(provider, outcome, form string, latency time.Duration) {
	m.DispatchesTotal.WithLabelValues(provider, outcome).Inc()
	m.DispatchDuration.WithLabelValues(provider).Observe(latency.Seconds())
	if form != "" {
		m.DeliveriesTotal.WithLabelValues(form).Inc()
	}
}

// ObserveInitialization records one provider initialization
func (m *Metrics) ObserveInitialization(provider, result string) {
	m.InitializationsTotal.WithLabelValues(provider, result).Inc()
}

// PoolStatsSource is satisfied by *workerpool.Pool
type PoolStatsSource interface {
	Stats() workerpool.Stats
}

// RegisterPool exposes the worker pool occupancy as gauges read at scrape time
func (m *Metrics) RegisterPool(pool PoolStatsSource) {
	factory := promauto.With(m.registry)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "in_flight",
		Help:      "Blocking generation calls currently running.",
	}, func() float64 { return float64(pool.Stats().InFlight) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "queued",
		Help:      "Blocking generation calls waiting for a worker.",
	}, func() float64 { return float64(pool.Stats().Queued) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "completed_total",
		Help:      "Blocking generation calls completed by the pool.",
	}, func() float64 { return float64(pool.Stats().Completed) })
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
