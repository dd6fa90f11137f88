package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
)

type sink struct {
	Addr     string
	Interval time.Duration
	Buffer   int
	log      logger.Logger
}

type sinkConf struct {
	Addr     string        `json:"addr"`
	Interval time.Duration `json:"interval"`
	Buffer   int           `json:"buffer"`
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sink]()
	require.NoError(t, reg.Register("s", func(conf map[string]any, log logger.Logger) (*sink, error) {
		var c sinkConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sink{Addr: c.Addr, Interval: c.Interval, Buffer: c.Buffer, log: log}, nil
	}))

	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{
		"addr":     ":9100",
		"interval": "2s",
		"buffer":   "16",
	}}, nil)
	require.NoError(t, err)
	assert.Equal(t, ":9100", inst.Addr)
	assert.Equal(t, 2*time.Second, inst.Interval)
	assert.Equal(t, 16, inst.Buffer)
	assert.Equal(t, logger.Nop{}, inst.log)
}

func TestRegistry_CreatePassesLogger(t *testing.T) {
	type named struct {
		logger.Nop
		name string
	}
	want := &named{name: "sink"}
	reg := NewRegistry[logger.Logger]()
	require.NoError(t, reg.Register("l", func(_ map[string]any, log logger.Logger) (logger.Logger, error) {
		return log, nil
	}))
	got, err := reg.Create(ModuleConfig{Type: "l"}, want)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any, logger.Logger) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any, logger.Logger) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))

	_, err := reg.Create(ModuleConfig{Type: "z"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
	assert.Equal(t, []string{"x"}, reg.Names())
}
