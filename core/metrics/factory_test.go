package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/SebastianAlessandro/gcam-core/core/factory"
	"github.com/SebastianAlessandro/gcam-core/core/logger"
	metrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	inframetrics "github.com/SebastianAlessandro/gcam-core/infra/metrics"
)

func TestNewMetricsSink_NoConfig(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil, nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)
}

func TestNewMetricsSink_Single(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "prometheus"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &inframetrics.PromSink{}, s)
}

type namedLoggers struct{ names []string }

func (n *namedLoggers) Get(name string) logger.Logger {
	n.names = append(n.names, name)
	return logger.Nop{}
}

func TestNewMetricsSink_NamedLoggers(t *testing.T) {
	logs := &namedLoggers{}
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "prometheus"}}, logs)
	require.NoError(t, err)
	assert.Equal(t, []string{"nop", "prometheus"}, logs.names)
}

func TestNewMetricsSink_UnknownType(t *testing.T) {
	_, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "graphite"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphite")
}

func TestMetricsConfig_DecodeYAML(t *testing.T) {
	data := `sinks:
  - type: nop
  - type: prometheus
`
	var cfg metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))

	s, err := metrics.NewMetricsSink(cfg.Sinks, nil)
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok, "got %T", s)
	assert.Len(t, m.Sinks, 2)
	assert.NoError(t, m.RecordPeriodResult(metrics.PeriodResult{Period: 0, Converged: true}))
}

func TestMetricsConfig_DecodeJSON(t *testing.T) {
	data := `{"sinks":[{"type":"influx","conf":{"url":"http://127.0.0.1:1","bucket":"gcam"}}]}`
	var cfg metrics.Config
	require.NoError(t, json.Unmarshal([]byte(data), &cfg))
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "gcam", cfg.Sinks[0].Conf["bucket"])

	// Nothing listens there, so the sink falls back to a no-op.
	s, err := metrics.NewMetricsSink(cfg.Sinks, nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)
}
