package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetchCountsOutcomes(t *testing.T) {
	m := New(nil)

	m.ObserveFetch("1d", 120*time.Millisecond, nil)
	m.ObserveFetch("1d", 80*time.Millisecond, errors.New("timeout"))
	m.ObserveFetch("5d", 50*time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("1d", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("1d", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fetches.WithLabelValues("5d", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FetchDuration))
}

func TestGaugesAndCycles(t *testing.T) {
	m := New(nil)

	m.CycleStarted("timer")
	m.CycleStarted("timer")
	m.CycleStarted("add")
	m.SetTracked(3)
	m.SetAvgChange(-0.015)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("add")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Tracked))
	assert.Equal(t, -0.015, testutil.ToFloat64(m.AvgChange))
}

func TestRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetTracked(1)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "stockfin_tracked_stocks")
	assert.Contains(t, names, "stockfin_avg_change_ratio")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("1d", time.Second, nil)
		m.CycleStarted("manual")
		m.SetTracked(1)
		m.SetAvgChange(0.1)
	})
}
