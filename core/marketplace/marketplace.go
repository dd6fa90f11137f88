// Package marketplace owns every market of a run. Markets are created once
// per (market, good) for all periods; regions are attached to the market they
// aggregate into and collaborators address markets by (good, region, period).
//
// A Marketplace is not safe for concurrent mutation. Concurrent readers are
// fine while nothing writes, which is what the economy fan-out relies on.
package marketplace

import (
	"errors"
	"fmt"

	"github.com/SebastianAlessandro/gcam-core/core/logger"
	"github.com/SebastianAlessandro/gcam-core/core/market"
)

var (
	// ErrMarketNotFound is returned when no market serves a (good, region).
	ErrMarketNotFound = errors.New("market not found")
	// ErrPeriodOutOfRange is returned for periods outside the run.
	ErrPeriodOutOfRange = errors.New("period out of range")
	// ErrInvalidMarket is returned when a market definition is incomplete.
	ErrInvalidMarket = errors.New("invalid market definition")
)

// MarketSpec describes a market to create.
type MarketSpec struct {
	Good string
	// Market is the name of the region aggregate, e.g. "Global" or "USA".
	Market       string
	Kind         market.Kind
	InitialPrice float64
	// FixedPrice is the pinned price of Fixed markets.
	FixedPrice float64
	Solve      bool
}

type locatorKey struct {
	region string
	good   string
}

// Marketplace is the single owning registry of all markets for a run.
type Marketplace struct {
	log     logger.Logger
	periods int
	markets [][]*market.Market
	specs   []MarketSpec
	names   map[string]int
	locator map[locatorKey]int
}

// New returns an empty marketplace spanning periods periods.
func New(periods int, log logger.Logger) (*Marketplace, error) {
	if periods <= 0 {
		return nil, fmt.Errorf("periods must be positive, got %d", periods)
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Marketplace{
		log:     log,
		periods: periods,
		names:   make(map[string]int),
		locator: make(map[locatorKey]int),
	}, nil
}

// Periods returns the number of periods in the run.
func (mp *Marketplace) Periods() int { return mp.periods }

// Len returns the number of distinct markets.
func (mp *Marketplace) Len() int { return len(mp.markets) }

// CreateMarket registers region as a contributor to the market described by
// spec, creating the market for every period if it does not exist yet. It
// reports whether a new market was created. Registering the same region twice
// is logged and ignored.
func (mp *Marketplace) CreateMarket(region string, spec MarketSpec) (bool, error) {
	if region == "" || spec.Good == "" || spec.Market == "" {
		return false, fmt.Errorf("%w: region=%q market=%q good=%q", ErrInvalidMarket, region, spec.Market, spec.Good)
	}
	key := locatorKey{region: region, good: spec.Good}
	name := spec.Market + spec.Good

	if prev, ok := mp.locator[key]; ok && mp.markets[prev][0].Name() != name {
		return false, fmt.Errorf("%w: region %s already trades %s through market %s",
			ErrInvalidMarket, region, spec.Good, mp.markets[prev][0].Name())
	}

	idx, exists := mp.names[name]
	if exists {
		prev := mp.specs[idx]
		switch {
		case prev.Kind != spec.Kind:
			return false, fmt.Errorf("%w: market %s already created as %s, not %s", ErrInvalidMarket, name, prev.Kind, spec.Kind)
		case prev.InitialPrice != spec.InitialPrice:
			return false, fmt.Errorf("%w: market %s already created with initial price %g, not %g",
				ErrInvalidMarket, name, prev.InitialPrice, spec.InitialPrice)
		case prev.FixedPrice != spec.FixedPrice:
			return false, fmt.Errorf("%w: market %s already created with fixed price %g, not %g",
				ErrInvalidMarket, name, prev.FixedPrice, spec.FixedPrice)
		case prev.Solve != spec.Solve:
			return false, fmt.Errorf("%w: market %s already created with solve=%t", ErrInvalidMarket, name, prev.Solve)
		}
	} else {
		v, err := market.NewVariant(spec.Kind, spec.FixedPrice)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidMarket, err)
		}
		series := make([]*market.Market, mp.periods)
		for p := range series {
			m := market.New(spec.Good, spec.Market, p, v)
			m.SetRawPrice(spec.InitialPrice)
			m.SetSolveMarket(spec.Solve)
			series[p] = m
		}
		idx = len(mp.markets)
		mp.markets = append(mp.markets, series)
		mp.specs = append(mp.specs, spec)
		mp.names[name] = idx
	}

	for _, m := range mp.markets[idx] {
		if err := m.AddRegion(region); err != nil {
			mp.log.Warnf("region %s already contained in market %s; ignoring", region, name)
			return false, nil
		}
	}
	mp.locator[key] = idx
	return !exists, nil
}

// Lookup returns the market serving good for region in period.
func (mp *Marketplace) Lookup(good, region string, period int) (*market.Market, error) {
	if err := mp.checkPeriod(period); err != nil {
		return nil, err
	}
	idx, ok := mp.locator[locatorKey{region: region, good: good}]
	if !ok {
		return nil, fmt.Errorf("%w: good %s in region %s", ErrMarketNotFound, good, region)
	}
	return mp.markets[idx][period], nil
}

// MarketByName returns the market named name (region aggregate + good).
func (mp *Marketplace) MarketByName(name string, period int) (*market.Market, error) {
	if err := mp.checkPeriod(period); err != nil {
		return nil, err
	}
	idx, ok := mp.names[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, name)
	}
	return mp.markets[idx][period], nil
}

func (mp *Marketplace) checkPeriod(period int) error {
	if period < 0 || period >= mp.periods {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrPeriodOutOfRange, period, mp.periods)
	}
	return nil
}

// AddToDemand adds demand for good reported by region.
func (mp *Marketplace) AddToDemand(good, region string, amount float64, period int) error {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return err
	}
	m.AddToDemand(amount)
	return nil
}

// AddToSupply adds supply of good reported by region.
func (mp *Marketplace) AddToSupply(good, region string, amount float64, period int) error {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return err
	}
	m.AddToSupply(amount)
	return nil
}

// Price returns the price region faces for good.
func (mp *Marketplace) Price(good, region string, period int) (float64, error) {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return 0, err
	}
	return m.Price(), nil
}

// Demand returns the aggregated demand of the market serving (good, region).
func (mp *Marketplace) Demand(good, region string, period int) (float64, error) {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return 0, err
	}
	return m.Demand(), nil
}

// Supply returns the aggregated supply of the market serving (good, region).
func (mp *Marketplace) Supply(good, region string, period int) (float64, error) {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return 0, err
	}
	return m.Supply(), nil
}

// SetMarketToSolve flags the market serving (good, region) for solving.
func (mp *Marketplace) SetMarketToSolve(good, region string, period int) error {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return err
	}
	m.SetSolveMarket(true)
	return nil
}

// UnsetMarketToSolve holds the market serving (good, region) at its price.
func (mp *Marketplace) UnsetMarketToSolve(good, region string, period int) error {
	m, err := mp.Lookup(good, region, period)
	if err != nil {
		return err
	}
	m.SetSolveMarket(false)
	return nil
}

// Markets returns the markets of period in creation order.
func (mp *Marketplace) Markets(period int) []*market.Market {
	if mp.checkPeriod(period) != nil {
		return nil
	}
	out := make([]*market.Market, 0, len(mp.markets))
	for _, series := range mp.markets {
		out = append(out, series[period])
	}
	return out
}

// SolvableMarkets returns the markets of period that should be solved.
func (mp *Marketplace) SolvableMarkets(period int) []*market.Market {
	return mp.filter(period, (*market.Market).ShouldSolve)
}

// NRMarkets returns the markets of period eligible for the Newton step.
func (mp *Marketplace) NRMarkets(period int) []*market.Market {
	return mp.filter(period, (*market.Market).ShouldSolveNR)
}

func (mp *Marketplace) filter(period int, keep func(*market.Market) bool) []*market.Market {
	var out []*market.Market
	for _, m := range mp.Markets(period) {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (mp *Marketplace) each(period int, fn func(*market.Market)) {
	for _, m := range mp.Markets(period) {
		fn(m)
	}
}

// NullDemands resets demand of every market in period.
func (mp *Marketplace) NullDemands(period int) { mp.each(period, (*market.Market).NullDemand) }

// NullSupplies resets supply of every market in period.
func (mp *Marketplace) NullSupplies(period int) { mp.each(period, (*market.Market).NullSupply) }

// StoreInfo snapshots every market in period.
func (mp *Marketplace) StoreInfo(period int) { mp.each(period, (*market.Market).StoreInfo) }

// RestoreInfo rolls every market in period back to its snapshot.
func (mp *Marketplace) RestoreInfo(period int) { mp.each(period, (*market.Market).RestoreInfo) }

// InitPrices prepares the starting prices of period. The first period uses
// each variant's initial price; later periods start from the previous
// period's solution and keep it as the stored snapshot.
func (mp *Marketplace) InitPrices(period int) error {
	if err := mp.checkPeriod(period); err != nil {
		return err
	}
	for _, series := range mp.markets {
		m := series[period]
		m.InitPrice()
		if period == 0 {
			continue
		}
		last := series[period-1]
		m.SetPriceFromLast(last.RawPrice())
		m.StoreInfoFromLast(last.RawDemand(), last.RawSupply(), last.RawPrice())
	}
	return nil
}

// Close releases every market. The marketplace is empty afterwards.
func (mp *Marketplace) Close() error {
	for i := range mp.markets {
		clear(mp.markets[i])
	}
	mp.markets = nil
	clear(mp.names)
	clear(mp.locator)
	return nil
}
