// Package solver drives a marketplace to equilibrium one period at a time.
//
// Each iteration re-evaluates the economy at the current prices, ranks the
// markets that are still out of tolerance by relative excess demand and moves
// their prices. Markets eligible for the simultaneous step are moved together
// with a damped Newton-Raphson update; all others, and Newton markets whose
// step fails, are moved by bracketing and bisection.
//
// A period that exhausts its iteration budget is reported as not converged
// and its best prices are kept. Only failures of the economy itself are
// returned as errors.
package solver

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
	"github.com/SebastianAlessandro/gcam-core/core/market"
	"github.com/SebastianAlessandro/gcam-core/core/monitoring"
	"github.com/SebastianAlessandro/gcam-core/internal/eventbus"
)

// ErrNotConverged is reported to the monitor when a period runs out of iterations.
var ErrNotConverged = errors.New("solution did not converge")

// Reporter is the view of the marketplace given to the economy: it reads
// prices and reports quantities.
type Reporter interface {
	Price(good, region string, period int) (float64, error)
	AddToDemand(good, region string, amount float64, period int) error
	AddToSupply(good, region string, amount float64, period int) error
}

// Economy reports demand and supply for every market at current prices.
type Economy interface {
	Calc(period int, r Reporter) error
}

// EconomyFunc adapts a function to the Economy interface.
type EconomyFunc func(period int, r Reporter) error

// Calc calls f.
func (f EconomyFunc) Calc(period int, r Reporter) error { return f(period, r) }

// Marketplace is the part of the marketplace the solver drives.
type Marketplace interface {
	Reporter
	Markets(period int) []*market.Market
	SolvableMarkets(period int) []*market.Market
	NRMarkets(period int) []*market.Market
	NullDemands(period int)
	NullSupplies(period int)
	StoreInfo(period int)
	RestoreInfo(period int)
}

// Solver finds market-clearing prices.
type Solver struct {
	cfg     Config
	mp      Marketplace
	econ    Economy
	log     logger.Logger
	monitor monitoring.Monitor
	bus     *eventbus.TypedBus[Event]
}

// Option customises a Solver.
type Option func(*Solver)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMonitor sets where non-convergence is reported.
func WithMonitor(m monitoring.Monitor) Option {
	return func(s *Solver) {
		if m != nil {
			s.monitor = m
		}
	}
}

// WithEventBus publishes progress events on bus.
func WithEventBus(bus *eventbus.TypedBus[Event]) Option {
	return func(s *Solver) { s.bus = bus }
}

// New validates cfg and returns a Solver for mp and econ.
func New(cfg Config, mp Marketplace, econ Economy, opts ...Option) (*Solver, error) {
	if mp == nil || econ == nil {
		return nil, errors.New("solver requires a marketplace and an economy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("solver config: %w", err)
	}
	s := &Solver{cfg: cfg, mp: mp, econ: econ, log: logger.Nop{}, monitor: monitoring.NopMonitor{}}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// periodState is the scratch state of one Solve call.
type periodState struct {
	period         int
	evaluations    int
	newtonSteps    int
	newtonFailures int
	newtonOff      bool
	brackets       map[*market.Market]*bracket
	// joint holds every market moved by an accepted Newton step.
	joint map[*market.Market]bool
}

// Solve searches for equilibrium prices in period. Prices must have been
// initialised by the marketplace beforehand.
func (s *Solver) Solve(period int) (Result, error) {
	start := time.Now()
	st := &periodState{
		period:    period,
		newtonOff: s.cfg.Newton.Disabled,
		brackets:  make(map[*market.Market]*bracket),
		joint:     make(map[*market.Market]bool),
	}
	if err := s.evaluate(st); err != nil {
		return Result{}, err
	}
	for _, m := range s.mp.Markets(period) {
		if m.ShouldSolve() {
			m.BeginSolve()
		}
	}

	iter := 0
	for ; iter < s.cfg.MaxIterations; iter++ {
		unsolved := s.unsolved(period)
		if len(unsolved) == 0 {
			break
		}
		market.SortByRelativeExcessDemand(unsolved)

		method := MethodBracket
		var moved map[*market.Market]bool
		if !st.newtonOff {
			nr := s.newtonSet(period)
			if len(nr) > 0 && anyUnsolved(nr, s.withinTolerance) {
				ok, err := s.newtonStep(st, nr)
				if err != nil {
					return Result{}, err
				}
				if ok {
					method = MethodNewton
					st.newtonSteps++
					st.newtonFailures = 0
					moved = make(map[*market.Market]bool, len(nr))
					for _, m := range nr {
						moved[m] = true
						st.joint[m] = true
					}
					// The step shifted every excess demand curve.
					clear(st.brackets)
				} else {
					st.newtonFailures++
					if st.newtonFailures >= s.cfg.Newton.MaxFailures {
						st.newtonOff = true
						s.log.Warnf("period %d: newton disabled after %d failed steps, falling back to bracketing", period, st.newtonFailures)
					}
				}
			}
		}

		var step []*market.Market
		for _, m := range s.unsolved(period) {
			if !moved[m] {
				step = append(step, m)
			}
		}
		if len(step) > 0 {
			market.SortByRelativeExcessDemand(step)
			if k := s.cfg.MaxMarketsPerStep; k > 0 && len(step) > k {
				step = step[:k]
			}
			if method == MethodNewton {
				method = MethodHybrid
			}
			if err := s.bracketStep(st, step); err != nil {
				return Result{}, err
			}
		}
		s.publishIteration(st, iter+1, method)
	}

	res := s.finish(st, iter, time.Since(start))
	s.publish(PeriodEvent{Result: res, Time: time.Now()})
	return res, nil
}

// evaluate resets every market and lets the economy report again.
func (s *Solver) evaluate(st *periodState) error {
	s.mp.NullDemands(st.period)
	s.mp.NullSupplies(st.period)
	st.evaluations++
	if err := s.econ.Calc(st.period, s.mp); err != nil {
		return fmt.Errorf("economy calc period %d: %w", st.period, err)
	}
	return nil
}

func (s *Solver) withinTolerance(m *market.Market) bool {
	return math.Abs(m.RelativeExcessDemand()) < s.cfg.RelativeTolerance ||
		math.Abs(m.ExcessDemand()) < s.cfg.AbsoluteTolerance
}

// unsolved returns the markets that should be solved but are out of tolerance.
func (s *Solver) unsolved(period int) []*market.Market {
	var out []*market.Market
	for _, m := range s.mp.SolvableMarkets(period) {
		if !s.withinTolerance(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s *Solver) newtonSet(period int) []*market.Market {
	return s.mp.NRMarkets(period)
}

func anyUnsolved(ms []*market.Market, ok func(*market.Market) bool) bool {
	for _, m := range ms {
		if !ok(m) {
			return true
		}
	}
	return false
}

// worst returns the solvable market with the largest |relative excess demand|.
func (s *Solver) worst(period int) (string, float64) {
	name, top := "", 0.0
	for _, m := range s.mp.SolvableMarkets(period) {
		if red := math.Abs(m.RelativeExcessDemand()); red > top || name == "" {
			name, top = m.Name(), red
		}
	}
	return name, top
}

func (s *Solver) publishIteration(st *periodState, iter int, method Method) {
	name, red := s.worst(st.period)
	unsolved := len(s.unsolved(st.period))
	s.log.Debugw("solver iteration", map[string]any{
		"period":    st.period,
		"iteration": iter,
		"method":    string(method),
		"unsolved":  unsolved,
		"worst":     name,
		"max_red":   red,
	})
	s.publish(IterationEvent{
		Period:                  st.period,
		Iteration:               iter,
		Method:                  method,
		Unsolved:                unsolved,
		MaxRelativeExcessDemand: red,
		WorstMarket:             name,
		Time:                    time.Now(),
	})
}

func (s *Solver) publish(ev Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// finish marks converged markets and builds the period result. Markets of
// the Newton set, whether eligible now or moved by an accepted step, only
// converge together.
func (s *Solver) finish(st *periodState, iterations int, elapsed time.Duration) Result {
	markets := s.mp.Markets(st.period)
	for _, m := range s.newtonSet(st.period) {
		st.joint[m] = true
	}
	newtonOK := true
	for m := range st.joint {
		if m.ShouldSolve() && !s.withinTolerance(m) {
			newtonOK = false
		}
	}
	for _, m := range markets {
		if m.State() != market.Solving {
			continue
		}
		done := !m.ShouldSolve() || s.withinTolerance(m)
		if st.joint[m] {
			done = newtonOK
		}
		if done {
			m.MarkConverged()
		}
	}

	worst, maxRED := s.worst(st.period)
	res := Result{
		Period:                  st.period,
		Converged:               len(s.unsolved(st.period)) == 0,
		Iterations:              iterations,
		Evaluations:             st.evaluations,
		NewtonSteps:             st.newtonSteps,
		MaxRelativeExcessDemand: maxRED,
		WorstMarket:             worst,
		Duration:                elapsed,
		Markets:                 make([]MarketResult, 0, len(markets)),
	}
	for _, m := range markets {
		res.Markets = append(res.Markets, Snapshot(m))
	}

	if res.Converged {
		s.log.Infow("period solved", map[string]any{
			"period":      st.period,
			"iterations":  iterations,
			"evaluations": st.evaluations,
			"newton":      st.newtonSteps,
			"duration":    elapsed.String(),
		})
		return res
	}
	s.log.Warnf("period %d did not converge after %d iterations: worst market %s at %.6g",
		st.period, iterations, worst, maxRED)
	s.monitor.CaptureException(fmt.Errorf("%w: period %d", ErrNotConverged, st.period), map[string]string{
		"period":       strconv.Itoa(st.period),
		"worst_market": worst,
		"iterations":   strconv.Itoa(iterations),
	})
	return res
}
