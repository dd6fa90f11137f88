// Package economy provides the demand and supply agents that drive the
// marketplace in a standalone run, and the scenario files that describe them.
package economy

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

// Economy evaluates every agent against current prices and reports the
// results to the marketplace. Agents run concurrently while they only read
// prices; their contributions are then applied one by one in agent order.
type Economy struct {
	agents  []Agent
	workers int
	log     logger.Logger
}

// Option customises an Economy.
type Option func(*Economy)

// WithWorkers bounds the number of agents evaluated concurrently.
func WithWorkers(n int) Option {
	return func(e *Economy) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Economy) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Economy over agents.
func New(agents []Agent, opts ...Option) *Economy {
	e := &Economy{agents: agents, workers: runtime.GOMAXPROCS(0), log: logger.Nop{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Agents returns the agents in evaluation order.
func (e *Economy) Agents() []Agent { return e.agents }

// Calc implements solver.Economy.
func (e *Economy) Calc(period int, r solver.Reporter) error {
	results := make([][]Contribution, len(e.agents))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, a := range e.agents {
		g.Go(func() error {
			cs, err := a.Contribute(period, r)
			if err != nil {
				return fmt.Errorf("agent %s: %w", a.Name(), err)
			}
			results[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, cs := range results {
		for _, c := range cs {
			var err error
			if c.Supply {
				err = r.AddToSupply(c.Good, c.Region, c.Amount, period)
			} else {
				err = r.AddToDemand(c.Good, c.Region, c.Amount, period)
			}
			if err != nil {
				return fmt.Errorf("agent %s: %w", e.agents[i].Name(), err)
			}
		}
	}
	e.log.Debugf("period %d: %d agents reported", period, len(e.agents))
	return nil
}
