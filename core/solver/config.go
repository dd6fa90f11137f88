package solver

import "fmt"

// Config defines the convergence criteria and step policies of the solver.
type Config struct {
	// RelativeTolerance is the |relative excess demand| below which a market is solved.
	RelativeTolerance float64 `json:"relative_tolerance"`
	// AbsoluteTolerance solves markets whose |excess demand| is negligible
	// even when the relative measure is not.
	AbsoluteTolerance float64 `json:"absolute_tolerance"`
	MaxIterations     int     `json:"max_iterations"`
	// BracketStep is the fractional price move used while searching for a bracket.
	BracketStep float64 `json:"bracket_step"`
	// BracketTolerance is the relative width under which an unsolved bracket is re-opened.
	BracketTolerance float64 `json:"bracket_tolerance"`
	// MaxMarketsPerStep limits the bracketing step to the worst markets. Zero moves all.
	MaxMarketsPerStep int          `json:"max_markets_per_step"`
	Newton            NewtonConfig `json:"newton"`
}

// NewtonConfig tunes the simultaneous Newton-Raphson step.
type NewtonConfig struct {
	Disabled bool `json:"disabled"`
	// Delta is the relative price perturbation used for the numerical Jacobian.
	Delta float64 `json:"delta"`
	// MaxFailures consecutive failed steps disable Newton for the rest of the period.
	MaxFailures     int     `json:"max_failures"`
	LineSearchSteps int     `json:"line_search_steps"`
	MaxCondition    float64 `json:"max_condition"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RelativeTolerance == 0 {
		c.RelativeTolerance = 1e-3
	}
	if c.AbsoluteTolerance == 0 {
		c.AbsoluteTolerance = 1e-6
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 500
	}
	if c.BracketStep == 0 {
		c.BracketStep = 0.5
	}
	if c.BracketTolerance == 0 {
		c.BracketTolerance = 1e-12
	}
	if c.Newton.Delta == 0 {
		c.Newton.Delta = 1e-5
	}
	if c.Newton.MaxFailures == 0 {
		c.Newton.MaxFailures = 3
	}
	if c.Newton.LineSearchSteps == 0 {
		c.Newton.LineSearchSteps = 8
	}
	if c.Newton.MaxCondition == 0 {
		c.Newton.MaxCondition = 1e12
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.RelativeTolerance <= 0 || c.RelativeTolerance >= 1 {
		return fmt.Errorf("relative_tolerance must be in (0,1), got %v", c.RelativeTolerance)
	}
	if c.AbsoluteTolerance < 0 {
		return fmt.Errorf("absolute_tolerance must not be negative")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.BracketStep <= 0 {
		return fmt.Errorf("bracket_step must be positive")
	}
	if c.BracketTolerance <= 0 {
		return fmt.Errorf("bracket_tolerance must be positive")
	}
	if c.MaxMarketsPerStep < 0 {
		return fmt.Errorf("max_markets_per_step must not be negative")
	}
	if c.Newton.Delta <= 0 || c.Newton.MaxFailures <= 0 || c.Newton.LineSearchSteps <= 0 || c.Newton.MaxCondition <= 1 {
		return fmt.Errorf("invalid newton settings: %+v", c.Newton)
	}
	return nil
}
