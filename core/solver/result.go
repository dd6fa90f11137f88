package solver

import (
	"time"

	"github.com/SebastianAlessandro/gcam-core/core/market"
)

// MarketResult is the state of one market at the end of a period.
type MarketResult struct {
	Name                 string       `json:"name"`
	Good                 string       `json:"good"`
	Region               string       `json:"region"`
	Type                 string       `json:"type"`
	Price                float64      `json:"price"`
	Demand               float64      `json:"demand"`
	Supply               float64      `json:"supply"`
	RelativeExcessDemand float64      `json:"relative_excess_demand"`
	State                market.State `json:"state"`
}

// Result summarises the solution of one period.
type Result struct {
	Period      int  `json:"period"`
	Converged   bool `json:"converged"`
	Iterations  int  `json:"iterations"`
	Evaluations int  `json:"evaluations"`
	// NewtonSteps counts accepted simultaneous steps.
	NewtonSteps             int            `json:"newton_steps"`
	MaxRelativeExcessDemand float64        `json:"max_relative_excess_demand"`
	WorstMarket             string         `json:"worst_market"`
	Duration                time.Duration  `json:"duration"`
	Markets                 []MarketResult `json:"markets"`
}

// Snapshot captures the current state of m.
func Snapshot(m *market.Market) MarketResult {
	return MarketResult{
		Name:                 m.Name(),
		Good:                 m.Good(),
		Region:               m.Region(),
		Type:                 m.Type(),
		Price:                m.Price(),
		Demand:               m.Demand(),
		Supply:               m.Supply(),
		RelativeExcessDemand: m.RelativeExcessDemand(),
		State:                m.State(),
	}
}
