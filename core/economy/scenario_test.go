package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastianAlessandro/gcam-core/core/market"
	"github.com/SebastianAlessandro/gcam-core/core/marketplace"
	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

func loadTwoRegion(t *testing.T) (*marketplace.Marketplace, *Economy) {
	t.Helper()
	sc, err := Load("testdata/two_region.yaml")
	require.NoError(t, err)
	assert.Equal(t, "two-region", sc.Name)
	mp, econ, err := sc.Build(nil)
	require.NoError(t, err)
	return mp, econ
}

func TestLoad_TwoRegion(t *testing.T) {
	mp, econ := loadTwoRegion(t)
	assert.Equal(t, 3, mp.Periods())
	assert.Equal(t, 4, mp.Len())
	assert.Len(t, econ.Agents(), 8)

	oil, err := mp.Lookup("oil", "China", 0)
	require.NoError(t, err)
	assert.Equal(t, "Globaloil", oil.Name())
	assert.Equal(t, []string{"USA", "China"}, oil.ContainedRegions())
	assert.Equal(t, market.Newton, oil.Kind())

	coal, err := mp.MarketByName("Chinacoal", 0)
	require.NoError(t, err)
	assert.Equal(t, market.Fixed, coal.Kind())
}

func TestScenario_SolvesEveryPeriod(t *testing.T) {
	mp, econ := loadTwoRegion(t)
	cfg := solver.Config{RelativeTolerance: 1e-5}
	cfg.SetDefaults()
	s, err := solver.New(cfg, mp, econ)
	require.NoError(t, err)

	prevOil := 0.0
	for period := 0; period < mp.Periods(); period++ {
		require.NoError(t, mp.InitPrices(period))
		res, err := s.Solve(period)
		require.NoError(t, err)
		require.True(t, res.Converged, "period %d: worst %s at %g", period, res.WorstMarket, res.MaxRelativeExcessDemand)

		oil, err := mp.Price("oil", "USA", period)
		require.NoError(t, err)
		if period > 0 {
			assert.Greater(t, oil, prevOil, "growing demand raises the oil price")
		}
		prevOil = oil

		coal, _ := mp.Price("coal", "China", period)
		assert.Equal(t, 12.0, coal)

		// usa-power: D = 100 - p, S = 1.5p clears at 40 regardless of other markets.
		power, _ := mp.Price("electricity", "USA", period)
		assert.InDelta(t, 40, power, 1e-2)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"no periods":   "markets: [{good: oil, market: USA, regions: [USA]}]",
		"no markets":   "periods: 1",
		"bad type":     "periods: 1\nmarkets: [{good: oil, market: USA, regions: [USA], type: magic}]",
		"no regions":   "periods: 1\nmarkets: [{good: oil, market: USA}]",
		"bad form":     "periods: 1\nmarkets: [{good: oil, market: USA, regions: [USA]}]\nconsumers: [{region: USA, good: oil, form: cubic}]",
		"invalid yaml": "periods: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestBuild_UnservedGood(t *testing.T) {
	sc, err := Parse([]byte(`
periods: 1
markets:
  - {good: oil, market: USA, regions: [USA]}
producers:
  - {region: USA, good: oil, slope: 1, inputs: {water: 2}}
`))
	require.NoError(t, err)
	_, _, err = sc.Build(nil)
	assert.ErrorIs(t, err, marketplace.ErrMarketNotFound)
	assert.Contains(t, err.Error(), "producer-USA-oil")
}

func TestBuild_SolveFlag(t *testing.T) {
	sc, err := Parse([]byte(`
periods: 1
markets:
  - {good: oil, market: USA, regions: [USA], solve: false, initial_price: 3}
`))
	require.NoError(t, err)
	mp, _, err := sc.Build(nil)
	require.NoError(t, err)
	m, err := mp.Lookup("oil", "USA", 0)
	require.NoError(t, err)
	assert.False(t, m.SolveMarket())
	assert.Equal(t, 3.0, m.RawPrice())
}
