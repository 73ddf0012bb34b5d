package delayq

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus counters/histograms around reservation
// outcomes and retry behavior, grounded in the pack's metrics collector
// style (ChuLiYu-raft-recovery's queue_* gauges/counters). Unlike that
// example, Metrics registers against a caller-supplied prometheus.Registerer
// rather than the package-global default, so concurrent tests can each use
// their own isolated registry. The stores record reserve outcomes only;
// retryTotal changes only through observeRetry, which no store calls.
type Metrics struct {
	reserveTotal    *prometheus.CounterVec
	reserveDuration prometheus.Histogram
	retryTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers a Metrics against reg. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delayq_reserve_total",
			Help: "Total Reserve calls, partitioned by outcome (claimed, empty, error).",
		}, []string{"result"}),
		reserveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delayq_reserve_duration_seconds",
			Help:    "Reserve call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delayq_retry_total",
			Help: "Total retryOnDeadlock outcomes, partitioned by kind (succeeded, exhausted).",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.reserveTotal, m.reserveDuration, m.retryTotal)
	return m
}

func (m *Metrics) observeReserve(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.reserveTotal.WithLabelValues(result).Inc()
	m.reserveDuration.Observe(d.Seconds())
}

func (m *Metrics) observeRetry(kind string) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(kind).Inc()
}
