package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/pgkeepalive/internal/probe"
)

const namespace = "pgkeepalive"

// Cycle triggers, used as the "trigger" label.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// Metrics holds the keep-alive collectors.
type Metrics struct {
	cycles      *prometheus.CounterVec
	probes      *prometheus.CounterVec
	attempts    *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	targets     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Passing nil uses a fresh registry,
// which keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Metrics{
		cycles: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Check cycles run, by trigger and whether any binding was found.",
		}, []string{"trigger", "result"})),
		probes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Probe outcomes per database target.",
		}, []string{"target", "status"})),
		attempts: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_attempts",
			Help:      "Attempts used per probe.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}, []string{"target"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_ms",
			Help:      "Round-trip time of the liveness query in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"target"})),
		lastSuccess: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful probe per target.",
		}, []string{"target"})),
		targets: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets",
			Help:      "Database targets discovered in the last cycle.",
		})),
		gatherer: reg,
	}
}

// register adds c to reg. If an identical collector is already registered,
// that one is returned so observations reach what the registry exports.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// ObserveReport records one finished cycle. Safe on a nil receiver.
func (m *Metrics) ObserveReport(trigger string, rep probe.Report, at time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if len(rep.Outcomes) == 0 {
		result = "no_targets"
	}
	m.cycles.WithLabelValues(trigger, result).Inc()
	m.targets.Set(float64(len(rep.Outcomes)))

	for _, o := range rep.Outcomes {
		m.probes.WithLabelValues(o.Target, o.Status.String()).Inc()
		m.attempts.WithLabelValues(o.Target).Observe(float64(o.Attempts))
		if o.OK() && o.LatencyMS != nil {
			m.latency.WithLabelValues(o.Target).Observe(float64(*o.LatencyMS))
			m.lastSuccess.WithLabelValues(o.Target).Set(float64(at.Unix()))
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
