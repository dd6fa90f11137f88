package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
)

func TestPromSink_RecordPeriodResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordPeriodResult(coremetrics.PeriodResult{
		Period: 0, Converged: true, Iterations: 12, Duration: 30 * time.Millisecond, MaxRelativeExcessDemand: 1e-4,
	}))
	require.NoError(t, sink.RecordPeriodResult(coremetrics.PeriodResult{Period: 1, Converged: false, Iterations: 500}))

	expected := `
# HELP gcam_periods_solved_total Number of solved periods by convergence outcome
# TYPE gcam_periods_solved_total counter
gcam_periods_solved_total{converged="false"} 1
gcam_periods_solved_total{converged="true"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.periods, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.iterations))
}

func TestPromSink_RecordMarkets(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordMarkets([]coremetrics.MarketSnapshot{
		{Market: "USAoil", Good: "oil", Region: "USA", Price: 50, Demand: 60, Supply: 58},
		{Market: "Globalcoal", Good: "coal", Region: "Global", Price: 12},
	}))
	require.NoError(t, sink.RecordIteration(coremetrics.IterationSample{Unsolved: 3}))

	assert.Equal(t, 50.0, testutil.ToFloat64(sink.price.WithLabelValues("USAoil", "oil", "USA")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.excess.WithLabelValues("USAoil", "oil", "USA")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.price))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.unsolved))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordPeriodResult(coremetrics.PeriodResult{Converged: true}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.periods.WithLabelValues("true")))
}
