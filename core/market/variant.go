package market

import (
	"fmt"
	"strings"

	"github.com/SebastianAlessandro/gcam-core/internal/xmlout"
)

// defaultInitialPrice seeds solved markets that start without a price.
const defaultInitialPrice = 1.0

// Kind tags the pricing variant of a market.
type Kind int

const (
	// Simple markets are solved by bracketing only.
	Simple Kind = iota
	// Newton markets also join the simultaneous Newton-Raphson step.
	Newton
	// Fixed markets hold a pinned price and are never solved.
	Fixed
	// Constraint markets price a quantity cap; the price stays at zero while
	// the cap does not bind.
	Constraint
)

func (k Kind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Newton:
		return "newton"
	case Fixed:
		return "fixed"
	case Constraint:
		return "constraint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind. The empty string is Simple.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simple", "normal":
		return Simple, nil
	case "newton", "nr":
		return Newton, nil
	case "fixed", "calibration", "calibrated":
		return Fixed, nil
	case "constraint", "ghg":
		return Constraint, nil
	default:
		return 0, fmt.Errorf("unknown market type %q", s)
	}
}

// Variant is the pricing policy of a market. The set is closed: only the
// constructors in this package return implementations.
type Variant interface {
	Kind() Kind
	initPrice(m *Market)
	setPrice(m *Market, p float64)
	setPriceFromLast(m *Market, last float64)
	price(m *Market) float64
	addToDemand(m *Market, v float64)
	shouldSolve(m *Market) bool
	shouldSolveNR(m *Market) bool
	debugXML(m *Market, w *xmlout.Writer)
}

// NewVariant builds the variant for kind. fixedPrice is only used by Fixed.
func NewVariant(kind Kind, fixedPrice float64) (Variant, error) {
	switch kind {
	case Simple:
		return SimpleVariant(), nil
	case Newton:
		return NewtonVariant(), nil
	case Fixed:
		return FixedVariant(fixedPrice), nil
	case Constraint:
		return ConstraintVariant(), nil
	default:
		return nil, fmt.Errorf("unknown market kind %d", int(kind))
	}
}

// solved carries the behaviour shared by the price-solved variants.
type solved struct{}

func (solved) initPrice(m *Market) {
	if m.price < SmallNum {
		m.price = defaultInitialPrice
	}
}

func (solved) setPrice(m *Market, p float64) {
	if p < 0 {
		p = 0
	}
	m.price = p
}

func (solved) setPriceFromLast(m *Market, last float64) {
	if last > SmallNum {
		m.price = last
	}
}

func (solved) price(m *Market) float64          { return m.price }
func (solved) addToDemand(m *Market, v float64) { m.demand += v }
func (solved) shouldSolve(m *Market) bool       { return m.solveMarket }
func (solved) debugXML(*Market, *xmlout.Writer) {}

type simpleVariant struct{ solved }

// SimpleVariant returns the bracketing-only policy.
func SimpleVariant() Variant { return simpleVariant{} }

func (simpleVariant) Kind() Kind                 { return Simple }
func (simpleVariant) shouldSolveNR(*Market) bool { return false }

type newtonVariant struct{ solved }

// NewtonVariant returns the policy for markets solved simultaneously.
func NewtonVariant() Variant { return newtonVariant{} }

func (newtonVariant) Kind() Kind { return Newton }

// A Newton market needs non-zero quantities on both sides for its derivative
// to be meaningful.
func (newtonVariant) shouldSolveNR(m *Market) bool {
	return m.solveMarket && m.demand > SmallNum && m.supply > SmallNum
}

type fixedVariant struct {
	pinned float64
}

// FixedVariant returns a policy that holds price at pinned.
func FixedVariant(pinned float64) Variant { return fixedVariant{pinned: pinned} }

func (fixedVariant) Kind() Kind                              { return Fixed }
func (f fixedVariant) initPrice(m *Market)                   { m.price = f.pinned }
func (fixedVariant) setPrice(*Market, float64)               {}
func (f fixedVariant) setPriceFromLast(m *Market, _ float64) { m.price = f.pinned }
func (f fixedVariant) price(*Market) float64                 { return f.pinned }
func (fixedVariant) addToDemand(m *Market, v float64)        { m.demand += v }
func (fixedVariant) shouldSolve(*Market) bool                { return false }
func (fixedVariant) shouldSolveNR(*Market) bool              { return false }

func (f fixedVariant) debugXML(_ *Market, w *xmlout.Writer) {
	w.Element("fixedPrice", f.pinned)
}

type constraintVariant struct{ solved }

// ConstraintVariant returns the policy for markets that price a cap. Supply
// is the cap and demand is the constrained quantity.
func ConstraintVariant() Variant { return constraintVariant{} }

func (constraintVariant) Kind() Kind { return Constraint }

func (constraintVariant) initPrice(m *Market) {
	if m.price < 0 {
		m.price = 0
	}
}

func (c constraintVariant) shouldSolve(m *Market) bool {
	return m.solveMarket && c.binding(m)
}

func (c constraintVariant) shouldSolveNR(m *Market) bool {
	return c.shouldSolve(m) && m.demand > SmallNum && m.supply > SmallNum
}

// binding is false when the price is zero and the cap is not reached.
func (constraintVariant) binding(m *Market) bool {
	return !(m.price <= SmallNum && m.demand < m.supply)
}

func (c constraintVariant) debugXML(m *Market, w *xmlout.Writer) {
	w.Element("binding", c.binding(m))
}
