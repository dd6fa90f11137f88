package marketplace

import (
	"io"

	"github.com/SebastianAlessandro/gcam-core/internal/xmlout"
)

// ToDebugXML writes every market of period to out.
func (mp *Marketplace) ToDebugXML(period int, out io.Writer) error {
	if err := mp.checkPeriod(period); err != nil {
		return err
	}
	w := xmlout.NewWriter(out)
	w.Open("Marketplace")
	w.Element("period", period)
	w.Element("numberOfMarkets", mp.Len())
	for _, m := range mp.Markets(period) {
		if err := m.ToDebugXML(period, w); err != nil {
			return err
		}
	}
	w.Close("Marketplace")
	return w.Err()
}
