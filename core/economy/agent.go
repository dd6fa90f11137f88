package economy

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/SebastianAlessandro/gcam-core/core/market"
)

// PriceReader reads the price a region faces for a good.
type PriceReader interface {
	Price(good, region string, period int) (float64, error)
}

// Contribution is a quantity an agent reports to one market.
type Contribution struct {
	Good   string
	Region string
	Amount float64
	Supply bool
}

// Agent computes its market contributions from current prices. Agents must
// only read prices: Contribute runs concurrently with other agents.
type Agent interface {
	Name() string
	Contribute(period int, prices PriceReader) ([]Contribution, error)
}

// Functional forms of a response curve.
const (
	FormLinear     = "linear"
	FormIsoelastic = "isoelastic"
)

// Curve is a price response. Linear curves are base + slope*p + sum(cross_k*p_k);
// isoelastic curves are base * (p/ref)^elasticity * prod(p_k^cross_k). Base
// grows by growth per period.
type Curve struct {
	Form           string             `yaml:"form"`
	Base           float64            `yaml:"base"`
	Slope          float64            `yaml:"slope"`
	Elasticity     float64            `yaml:"elasticity"`
	ReferencePrice float64            `yaml:"reference_price"`
	Cross          map[string]float64 `yaml:"cross"`
	Growth         float64            `yaml:"growth"`
}

func (c Curve) validate() error {
	switch c.Form {
	case "", FormLinear:
	case FormIsoelastic:
		if c.ReferencePrice < 0 {
			return fmt.Errorf("reference_price must not be negative")
		}
	default:
		return fmt.Errorf("unknown form %q", c.Form)
	}
	return nil
}

// quantity evaluates the curve at own price p. Results are never negative.
func (c Curve) quantity(period int, p float64, cross map[string]float64) float64 {
	base := c.Base * math.Pow(1+c.Growth, float64(period))
	var q float64
	switch c.Form {
	case FormIsoelastic:
		ref := c.ReferencePrice
		if ref == 0 {
			ref = 1
		}
		q = base * math.Pow(math.Max(p, market.SmallNum)/ref, c.Elasticity)
		for g, e := range c.Cross {
			q *= math.Pow(math.Max(cross[g], market.SmallNum), e)
		}
	default:
		q = base + c.Slope*p
		for g, k := range c.Cross {
			q += k * cross[g]
		}
	}
	return math.Max(q, 0)
}

func (c Curve) crossPrices(good, region string, period int, prices PriceReader) (float64, map[string]float64, error) {
	p, err := prices.Price(good, region, period)
	if err != nil {
		return 0, nil, err
	}
	var cross map[string]float64
	if len(c.Cross) > 0 {
		cross = make(map[string]float64, len(c.Cross))
		for _, g := range slices.Sorted(maps.Keys(c.Cross)) {
			if cross[g], err = prices.Price(g, region, period); err != nil {
				return 0, nil, err
			}
		}
	}
	return p, cross, nil
}

// Consumer demands one good in one region.
type Consumer struct {
	ID     string
	Region string
	Good   string
	Curve  Curve
}

func (c *Consumer) Name() string { return c.ID }

// Contribute reports the demand at current prices.
func (c *Consumer) Contribute(period int, prices PriceReader) ([]Contribution, error) {
	p, cross, err := c.Curve.crossPrices(c.Good, c.Region, period, prices)
	if err != nil {
		return nil, err
	}
	return []Contribution{{Good: c.Good, Region: c.Region, Amount: c.Curve.quantity(period, p, cross)}}, nil
}

// Producer supplies one good in one region. Inputs are Leontief coefficients:
// producing one unit demands Inputs[g] units of good g in the same region.
type Producer struct {
	ID     string
	Region string
	Good   string
	Curve  Curve
	Inputs map[string]float64
}

func (p *Producer) Name() string { return p.ID }

// Contribute reports the supply at current prices and the matching input demand.
func (p *Producer) Contribute(period int, prices PriceReader) ([]Contribution, error) {
	price, cross, err := p.Curve.crossPrices(p.Good, p.Region, period, prices)
	if err != nil {
		return nil, err
	}
	out := p.Curve.quantity(period, price, cross)
	res := make([]Contribution, 0, 1+len(p.Inputs))
	res = append(res, Contribution{Good: p.Good, Region: p.Region, Amount: out, Supply: true})
	for _, g := range slices.Sorted(maps.Keys(p.Inputs)) {
		res = append(res, Contribution{Good: g, Region: p.Region, Amount: p.Inputs[g] * out})
	}
	return res, nil
}
