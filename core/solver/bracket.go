package solver

import (
	"github.com/SebastianAlessandro/gcam-core/core/market"
)

// seedPrice restarts an upward search from a zero price.
const seedPrice = 1.0

// bracket is the price interval known to contain a market's root. lo has
// positive excess demand, hi has non-positive excess demand.
type bracket struct {
	lo, hi       float64
	hasLo, hasHi bool
}

func (b *bracket) observe(price, excess float64) {
	if excess > 0 {
		b.lo, b.hasLo = price, true
	} else {
		b.hi, b.hasHi = price, true
	}
}

func (b *bracket) closed() bool { return b.hasLo && b.hasHi }

func (st *periodState) bracket(m *market.Market) *bracket {
	b, ok := st.brackets[m]
	if !ok {
		b = &bracket{}
		st.brackets[m] = b
	}
	return b
}

// bracketStep moves every market in ms one bracketing step and re-evaluates
// the economy once for all of them.
func (s *Solver) bracketStep(st *periodState, ms []*market.Market) error {
	for _, m := range ms {
		m.SetPrice(s.nextBracketPrice(st.bracket(m), m.RawPrice(), m.ExcessDemand()))
	}
	return s.evaluate(st)
}

// nextBracketPrice records the observation at price and returns the next
// trial. While only one side is known the price moves geometrically; once
// both are known it bisects. A bracket invalidated by moves in other markets,
// or one that collapsed without solving the market, is re-opened from price.
func (s *Solver) nextBracketPrice(b *bracket, price, excess float64) float64 {
	b.observe(price, excess)
	if b.closed() && (b.lo >= b.hi || b.hi-b.lo <= s.cfg.BracketTolerance*max(1, b.hi)) {
		*b = bracket{}
		b.observe(price, excess)
	}
	switch {
	case b.closed():
		return (b.lo + b.hi) / 2
	case b.hasLo:
		if price < market.SmallNum {
			return seedPrice
		}
		return price * (1 + s.cfg.BracketStep)
	default:
		next := price / (1 + s.cfg.BracketStep)
		if next < market.SmallNum {
			return 0
		}
		return next
	}
}
