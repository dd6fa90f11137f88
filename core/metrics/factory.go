package metrics

import (
	"errors"
	"fmt"
	"io"

	"github.com/SebastianAlessandro/gcam-core/core/factory"
	"github.com/SebastianAlessandro/gcam-core/core/logger"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// Loggers hands out named loggers. Each sink logs through the logger named
// after its type.
type Loggers interface {
	Get(name string) logger.Logger
}

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink creates the sinks listed in cfgs. No sinks yields a NopSink
// and several are combined in a MultiSink. If one sink fails, those already
// created are closed. A nil logs discards the output of the sinks.
func NewMetricsSink(cfgs []factory.ModuleConfig, logs Loggers) (MetricsSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		var log logger.Logger
		if logs != nil {
			log = logs.Get(c.Type)
		}
		s, err := sinkRegistry.Create(c, log)
		if err != nil {
			err = fmt.Errorf("sink %d: %w", i, err)
			for _, created := range sinks {
				if cl, ok := created.(io.Closer); ok {
					err = errors.Join(err, cl.Close())
				}
			}
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
