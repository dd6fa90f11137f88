package market

import (
	"fmt"
	"io"

	"github.com/SebastianAlessandro/gcam-core/internal/xmlout"
)

// ToDebugXML writes the market state for period into w. period must be the
// market's own.
func (m *Market) ToDebugXML(period int, w *xmlout.Writer) error {
	if period != m.period {
		return fmt.Errorf("%w: %s is period %d, not %d", ErrWrongPeriod, m.Name(), m.period, period)
	}
	w.Open("Market", xmlout.Attr{Name: "name", Value: m.Name()}, xmlout.Attr{Name: "type", Value: m.Type()})
	w.Element("period", m.period)
	w.Element("MarketRegion", m.region)
	w.Element("MarketGood", m.good)
	for _, r := range m.containedRegions {
		w.Element("ContainedRegion", r)
	}
	w.Element("price", m.Price())
	w.Element("rawPrice", m.price)
	w.Element("storedPrice", m.storedPrice)
	w.Element("demand", m.demand)
	w.Element("storedDemand", m.storedDemand)
	w.Element("supply", m.supply)
	w.Element("storedSupply", m.storedSupply)
	w.Element("relativeExcessDemand", m.RelativeExcessDemand())
	w.Element("solveMarket", m.solveMarket)
	w.Element("state", m.state)
	m.variant.debugXML(m, w)
	w.Close("Market")
	return nil
}

// WriteDebugXML is a convenience wrapper writing a standalone dump to out.
func (m *Market) WriteDebugXML(period int, out io.Writer) error {
	w := xmlout.NewWriter(out)
	if err := m.ToDebugXML(period, w); err != nil {
		return err
	}
	return w.Err()
}
