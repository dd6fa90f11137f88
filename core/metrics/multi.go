package metrics

import (
	"errors"
	"io"
)

// MultiSink fans records out to multiple sinks. Optional recorders are only
// forwarded to the sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPeriodResult forwards the result to all sinks. Every sink is tried;
// the errors are joined.
func (m *MultiSink) RecordPeriodResult(res PeriodResult) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPeriodResult(res))
	}
	return errors.Join(errs...)
}

// RecordMarkets forwards market snapshots.
func (m *MultiSink) RecordMarkets(snaps []MarketSnapshot) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(MarketRecorder); ok {
			errs = append(errs, rec.RecordMarkets(snaps))
		}
	}
	return errors.Join(errs...)
}

// RecordIteration forwards iteration samples.
func (m *MultiSink) RecordIteration(it IterationSample) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(IterationRecorder); ok {
			errs = append(errs, rec.RecordIteration(it))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
