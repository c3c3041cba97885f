package tlcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the prometheus collectors of a Translator. A nil *Metrics
// records nothing.
type Metrics struct {
	lookupsTotal         *prometheus.CounterVec
	providerCallsTotal   *prometheus.CounterVec
	providerDuration     prometheus.Histogram
	persistedTotal       prometheus.Counter
	persistFailuresTotal prometheus.Counter
	rejectedTotal        prometheus.Counter
	retriesTotal         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Request items looked up in the cache, by result",
			},
			[]string{"result"},
		),
		providerCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Translation provider calls, by status",
			},
			[]string{"status"},
		),
		providerDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_duration_seconds",
				Help:      "Translation provider call latency",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		persistedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_total",
			Help:      "Cache entries written",
		}),
		persistFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Cache writes that failed after retries",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Translations kept out of the cache by validation",
		}),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retried operations, by operation",
			},
			[]string{"op"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.lookupsTotal,
			m.providerCallsTotal,
			m.providerDuration,
			m.persistedTotal,
			m.persistFailuresTotal,
			m.rejectedTotal,
			m.retriesTotal,
		)
	}
	return m
}

func (m *Metrics) lookups(hits, misses int) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues("hit").Add(float64(hits))
	m.lookupsTotal.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) providerCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerCallsTotal.WithLabelValues(status).Inc()
	m.providerDuration.Observe(d.Seconds())
}

func (m *Metrics) persisted(n int) {
	if m == nil {
		return
	}
	m.persistedTotal.Add(float64(n))
}

func (m *Metrics) persistFailed() {
	if m == nil {
		return
	}
	m.persistFailuresTotal.Inc()
}

func (m *Metrics) rejected(n int) {
	if m == nil {
		return
	}
	m.rejectedTotal.Add(float64(n))
}

func (m *Metrics) retry(op string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(op).Inc()
}
