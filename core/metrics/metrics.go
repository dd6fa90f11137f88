package metrics

import "time"

// PeriodResult summarises the solution of one period.
type PeriodResult struct {
	RunID                   string
	Period                  int
	Converged               bool
	Iterations              int
	Evaluations             int
	NewtonSteps             int
	MaxRelativeExcessDemand float64
	WorstMarket             string
	Duration                time.Duration
	Time                    time.Time
}

// MetricsSink records period outcomes for observability purposes.
type MetricsSink interface {
	RecordPeriodResult(res PeriodResult) error
}

// MarketSnapshot is the state of one market at the end of a period.
type MarketSnapshot struct {
	RunID                string
	Period               int
	Market               string
	Good                 string
	Region               string
	Type                 string
	Price                float64
	Demand               float64
	Supply               float64
	RelativeExcessDemand float64
	Time                 time.Time
}

// MarketRecorder records per-market snapshots.
type MarketRecorder interface {
	RecordMarkets(snaps []MarketSnapshot) error
}

// IterationSample captures the progress of one solver iteration.
type IterationSample struct {
	RunID                   string
	Period                  int
	Iteration               int
	Method                  string
	Unsolved                int
	MaxRelativeExcessDemand float64
	Time                    time.Time
}

// IterationRecorder records solver iterations.
type IterationRecorder interface {
	RecordIteration(s IterationSample) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPeriodResult(PeriodResult) error { return nil }
func (NopSink) RecordMarkets([]MarketSnapshot) error  { return nil }
func (NopSink) RecordIteration(IterationSample) error { return nil }
