// Package monitoring exposes Prometheus collectors for the alpha pipeline.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Namespace string `yaml:"namespace"`
}

// Metrics owns a private registry so several services, and tests, can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotsIngested *prometheus.CounterVec
	SignalsGenerated  *prometheus.CounterVec
	BacktestsTotal    *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram
}

func NewMetrics(cfg Config) (*Metrics, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = "lobalpha"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SnapshotsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "snapshots_ingested_total", Help: "LOB snapshots accepted into the store"},
			[]string{"symbol"},
		),
		SignalsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "signals_generated_total", Help: "Alpha signals produced"},
			[]string{"symbol", "method"},
		),
		BacktestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: ns, Name: "backtests_total", Help: "Backtest runs by outcome"},
			[]string{"outcome"},
		),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "backtest_duration_seconds",
			Help:      "Wall time of a single backtest run",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.SnapshotsIngested, m.SignalsGenerated, m.BacktestsTotal, m.BacktestDuration} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is NewMetrics for callers with a fixed config.
func MustNew(cfg Config) *Metrics {
	m, err := NewMetrics(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) ObserveSnapshots(symbol string, n int) {
	if m == nil {
		return
	}
	m.SnapshotsIngested.WithLabelValues(symbol).Add(float64(n))
}

func (m *Metrics) ObserveSignals(symbol, method string, n int) {
	if m == nil {
		return
	}
	m.SignalsGenerated.WithLabelValues(symbol, method).Add(float64(n))
}

// ObserveBacktest records one run. A nil err counts as "ok".
func (m *Metrics) ObserveBacktest(started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.BacktestsTotal.WithLabelValues(outcome).Inc()
	m.BacktestDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
