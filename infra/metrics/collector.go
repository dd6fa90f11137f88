package metrics

import (
	"context"
	"time"

	coremetrics "github.com/SebastianAlessandro/gcam-core/core/metrics"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
	"github.com/SebastianAlessandro/gcam-core/infra/logger"
	"github.com/SebastianAlessandro/gcam-core/internal/eventbus"
)

// StartEventCollector subscribes to the solver event bus and records metrics
// for its events, tagged with runID. It stops when the context is canceled or
// the bus is closed; the returned channel is closed once it has stopped.
// Failed records are reported to log.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[solver.Event], sink coremetrics.MetricsSink, runID string, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev, runID); err != nil {
					log.Warnf("record solver event: %v", err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev solver.Event, runID string) error {
	switch e := ev.(type) {
	case solver.IterationEvent:
		if r, ok := sink.(coremetrics.IterationRecorder); ok {
			return r.RecordIteration(coremetrics.IterationSample{
				RunID:                   runID,
				Period:                  e.Period,
				Iteration:               e.Iteration,
				Method:                  string(e.Method),
				Unsolved:                e.Unsolved,
				MaxRelativeExcessDemand: e.MaxRelativeExcessDemand,
				Time:                    e.Time,
			})
		}
	case solver.PeriodEvent:
		res := e.Result
		if err := sink.RecordPeriodResult(coremetrics.PeriodResult{
			RunID:                   runID,
			Period:                  res.Period,
			Converged:               res.Converged,
			Iterations:              res.Iterations,
			Evaluations:             res.Evaluations,
			NewtonSteps:             res.NewtonSteps,
			MaxRelativeExcessDemand: res.MaxRelativeExcessDemand,
			WorstMarket:             res.WorstMarket,
			Duration:                res.Duration,
			Time:                    e.Time,
		}); err != nil {
			return err
		}
		if r, ok := sink.(coremetrics.MarketRecorder); ok {
			return r.RecordMarkets(Snapshots(runID, res, e.Time))
		}
	}
	return nil
}

// Snapshots converts the market results of a period into metrics records.
func Snapshots(runID string, res solver.Result, at time.Time) []coremetrics.MarketSnapshot {
	out := make([]coremetrics.MarketSnapshot, len(res.Markets))
	for i, m := range res.Markets {
		out[i] = coremetrics.MarketSnapshot{
			RunID:                runID,
			Period:               res.Period,
			Market:               m.Name,
			Good:                 m.Good,
			Region:               m.Region,
			Type:                 m.Type,
			Price:                m.Price,
			Demand:               m.Demand,
			Supply:               m.Supply,
			RelativeExcessDemand: m.RelativeExcessDemand,
			Time:                 at,
		}
	}
	return out
}
