// Package market holds the per-(good, region, period) equilibrium unit.
//
// A Market records the price the solver proposes and the demand and supply
// that collaborators report back at that price. A snapshot of the three values
// can be stored and restored so the solver can trial a price and roll it back.
// Pricing policy is delegated to a Variant.
package market

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// SmallNum is the magnitude below which quantities are treated as zero.
const SmallNum = 1e-6

var (
	// ErrDuplicateRegion is returned when a region is added to a market twice.
	ErrDuplicateRegion = errors.New("region already contained in market")
	// ErrWrongPeriod is returned when a market is asked about a period it does not belong to.
	ErrWrongPeriod = errors.New("market belongs to another period")
)

// State is the lifecycle position of a market within its period.
type State int

const (
	Uninitialized State = iota
	PriceSet
	Solving
	Converged
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case PriceSet:
		return "price-set"
	case Solving:
		return "solving"
	case Converged:
		return "converged"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for c := Uninitialized; c <= Converged; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown market state %q", b)
}

// Market is a single good traded in one region aggregate for one period.
type Market struct {
	good    string
	region  string
	period  int
	variant Variant

	solveMarket bool
	state       State

	price        float64
	storedPrice  float64
	demand       float64
	storedDemand float64
	supply       float64
	storedSupply float64

	containedRegions []string
}

// New creates a market. A nil variant defaults to Simple.
func New(good, region string, period int, v Variant) *Market {
	if v == nil {
		v = SimpleVariant()
	}
	return &Market{good: good, region: region, period: period, variant: v}
}

// Name is the region followed by the good, e.g. "USAoil".
func (m *Market) Name() string { return m.region + m.good }

func (m *Market) Good() string   { return m.good }
func (m *Market) Region() string { return m.region }
func (m *Market) Period() int    { return m.period }

// Kind returns the pricing variant of the market.
func (m *Market) Kind() Kind { return m.variant.Kind() }

// Type returns the variant name used in configuration and dumps.
func (m *Market) Type() string { return m.variant.Kind().String() }

// AddRegion registers a region whose quantities aggregate into this market.
// A region already present is rejected so it can never be counted twice.
func (m *Market) AddRegion(name string) error {
	if slices.Contains(m.containedRegions, name) {
		return ErrDuplicateRegion
	}
	m.containedRegions = append(m.containedRegions, name)
	return nil
}

// ContainedRegions returns a copy of the contained region names in insertion order.
func (m *Market) ContainedRegions() []string {
	return slices.Clone(m.containedRegions)
}

// InitPrice sets the starting price of the first period.
func (m *Market) InitPrice() {
	m.variant.initPrice(m)
	m.state = PriceSet
}

// SetPrice applies a price proposed by the solver, subject to the variant.
func (m *Market) SetPrice(p float64) { m.variant.setPrice(m, p) }

// SetRawPrice writes the price field bypassing the variant.
func (m *Market) SetRawPrice(p float64) { m.price = p }

// SetPriceFromLast seeds the price from the previous period's solution.
func (m *Market) SetPriceFromLast(last float64) {
	m.variant.setPriceFromLast(m, last)
	m.state = PriceSet
}

// Price returns the price collaborators should use.
func (m *Market) Price() float64 { return m.variant.price(m) }

func (m *Market) RawPrice() float64       { return m.price }
func (m *Market) StoredRawPrice() float64 { return m.storedPrice }

// NullDemand resets demand before collaborators report again.
func (m *Market) NullDemand() { m.demand = 0 }

func (m *Market) SetRawDemand(v float64) { m.demand = v }

// AddToDemand accumulates a demand contribution.
func (m *Market) AddToDemand(v float64) { m.variant.addToDemand(m, v) }

func (m *Market) RemoveFromRawDemand(v float64) { m.demand -= v }
func (m *Market) RawDemand() float64            { return m.demand }
func (m *Market) StoredRawDemand() float64      { return m.storedDemand }
func (m *Market) Demand() float64               { return m.demand }

// NullSupply resets supply before collaborators report again.
func (m *Market) NullSupply() { m.supply = 0 }

func (m *Market) SetRawSupply(v float64) { m.supply = v }

// AddToSupply accumulates a supply contribution.
func (m *Market) AddToSupply(v float64) { m.supply += v }

func (m *Market) RemoveFromRawSupply(v float64) { m.supply -= v }
func (m *Market) RawSupply() float64            { return m.supply }
func (m *Market) StoredRawSupply() float64      { return m.storedSupply }
func (m *Market) Supply() float64               { return m.supply }

// SupplyForChecking is the supply used by convergence checks.
func (m *Market) SupplyForChecking() float64 { return m.supply }

// ExcessDemand returns demand minus supply.
func (m *Market) ExcessDemand() float64 { return m.demand - m.SupplyForChecking() }

// RelativeExcessDemand normalises excess demand by the larger of demand and
// supply. It is zero when both are zero.
func (m *Market) RelativeExcessDemand() float64 {
	supply := m.SupplyForChecking()
	denom := math.Max(math.Max(math.Abs(m.demand), math.Abs(supply)), SmallNum)
	return (m.demand - supply) / denom
}

// StoreInfo snapshots price, demand and supply.
func (m *Market) StoreInfo() {
	m.storedPrice = m.price
	m.storedDemand = m.demand
	m.storedSupply = m.supply
}

// StoreInfoFromLast fills the snapshot with the previous period's values.
func (m *Market) StoreInfoFromLast(lastDemand, lastSupply, lastPrice float64) {
	m.storedDemand = lastDemand
	m.storedSupply = lastSupply
	m.storedPrice = lastPrice
}

// RestoreInfo rolls price, demand and supply back to the snapshot.
func (m *Market) RestoreInfo() {
	m.price = m.storedPrice
	m.demand = m.storedDemand
	m.supply = m.storedSupply
}

// SetSolveMarket flags whether the market takes part in solving.
func (m *Market) SetSolveMarket(solve bool) { m.solveMarket = solve }

// SolveMarket reports the raw solve flag.
func (m *Market) SolveMarket() bool { return m.solveMarket }

// ShouldSolve reports whether the bracketing solver should move this price.
func (m *Market) ShouldSolve() bool { return m.variant.shouldSolve(m) }

// ShouldSolveNR reports whether the market joins the simultaneous Newton step.
func (m *Market) ShouldSolveNR() bool { return m.variant.shouldSolveNR(m) }

// State returns the lifecycle state.
func (m *Market) State() State { return m.state }

// BeginSolve moves the market into Solving unless it already converged.
func (m *Market) BeginSolve() {
	if m.state != Converged {
		m.state = Solving
	}
}

// MarkConverged makes the market terminal for its period.
func (m *Market) MarkConverged() { m.state = Converged }
