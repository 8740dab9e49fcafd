// Package metrics exposes Prometheus collectors for the refresh engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stockfin"

type Metrics struct {
	Fetches       *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	Cycles        *prometheus.CounterVec
	Tracked       prometheus.Gauge
	AvgChange     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Range fetches by range and outcome",
			},
			[]string{"range", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of range fetches in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"range"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_total",
				Help:      "Refresh cycles started by trigger",
			},
			[]string{"reason"},
		),
		Tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_stocks",
			Help:      "Number of tracked stocks",
		}),
		AvgChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "avg_change_ratio",
			Help:      "Last published daily change as a fraction",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Fetches, m.FetchDuration, m.Cycles, m.Tracked, m.AvgChange)
	}
	return m
}

// ObserveFetch records one finished fetch of rng.
func (m *Metrics) ObserveFetch(rng string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Fetches.WithLabelValues(rng, outcome).Inc()
	m.FetchDuration.WithLabelValues(rng).Observe(elapsed.Seconds())
}

func (m *Metrics) CycleStarted(reason string) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetTracked(n int) {
	if m == nil {
		return
	}
	m.Tracked.Set(float64(n))
}

func (m *Metrics) SetAvgChange(v float64) {
	if m == nil {
		return
	}
	m.AvgChange.Set(v)
}
