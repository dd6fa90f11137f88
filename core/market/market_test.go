package market

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMarket_Identity(t *testing.T) {
	m := New("oil", "USA", 5, nil)
	assert.Equal(t, "oil", m.Good())
	assert.Equal(t, "USA", m.Region())
	assert.Equal(t, 5, m.Period())
	assert.Equal(t, "USAoil", m.Name())
	assert.Equal(t, Simple, m.Kind())
	assert.Equal(t, Uninitialized, m.State())
}

func TestMarket_OilScenario(t *testing.T) {
	m := New("oil", "USA", 5, SimpleVariant())
	m.AddToDemand(100)
	m.AddToSupply(80)
	assert.InDelta(t, 0.2, m.RelativeExcessDemand(), 1e-12)
	assert.InDelta(t, 20, m.ExcessDemand(), 1e-12)

	m.SetPrice(50)
	assert.Equal(t, 50.0, m.Price())

	fixed := New("oil", "USA", 5, FixedVariant(12))
	fixed.InitPrice()
	fixed.SetPrice(50)
	assert.Equal(t, 12.0, fixed.Price())
}

func TestMarket_ZeroOverZero(t *testing.T) {
	m := New("gas", "EU", 0, nil)
	assert.Equal(t, 0.0, m.RelativeExcessDemand())
}

func TestMarket_RelativeExcessDemandBounds(t *testing.T) {
	m := New("gas", "EU", 0, nil)
	m.AddToSupply(10)
	assert.InDelta(t, -1, m.RelativeExcessDemand(), 1e-12)
	m.NullSupply()
	m.AddToDemand(3)
	assert.InDelta(t, 1, m.RelativeExcessDemand(), 1e-12)
}

func TestMarket_AddRegionRejectsDuplicate(t *testing.T) {
	m := New("oil", "Global", 0, nil)
	require.NoError(t, m.AddRegion("A"))
	require.NoError(t, m.AddRegion("B"))
	assert.ErrorIs(t, m.AddRegion("A"), ErrDuplicateRegion)
	assert.Equal(t, []string{"A", "B"}, m.ContainedRegions())

	regions := m.ContainedRegions()
	regions[0] = "Z"
	assert.Equal(t, []string{"A", "B"}, m.ContainedRegions())
}

func TestMarket_NullResetsAccumulators(t *testing.T) {
	m := New("oil", "USA", 0, nil)
	m.AddToDemand(5)
	m.AddToDemand(7)
	m.AddToSupply(3)
	assert.Equal(t, 12.0, m.Demand())
	assert.Equal(t, 3.0, m.Supply())
	m.NullDemand()
	m.NullSupply()
	assert.Zero(t, m.Demand())
	assert.Zero(t, m.Supply())
}

func TestMarket_RawAdjustments(t *testing.T) {
	m := New("oil", "USA", 0, nil)
	m.SetRawDemand(10)
	m.RemoveFromRawDemand(4)
	m.SetRawSupply(8)
	m.RemoveFromRawSupply(3)
	assert.Equal(t, 6.0, m.RawDemand())
	assert.Equal(t, 5.0, m.RawSupply())
	assert.Equal(t, 5.0, m.SupplyForChecking())
}

func TestMarket_StoreRestore(t *testing.T) {
	m := New("oil", "USA", 0, nil)
	m.SetRawPrice(3)
	m.AddToDemand(10)
	m.AddToSupply(9)
	m.StoreInfo()
	assert.Equal(t, 3.0, m.StoredRawPrice())
	assert.Equal(t, 10.0, m.StoredRawDemand())
	assert.Equal(t, 9.0, m.StoredRawSupply())

	m.SetPrice(7)
	m.AddToDemand(1)
	m.NullSupply()
	m.RestoreInfo()
	assert.Equal(t, 3.0, m.RawPrice())
	assert.Equal(t, 10.0, m.Demand())
	assert.Equal(t, 9.0, m.Supply())
}

func TestMarket_StoreInfoFromLast(t *testing.T) {
	m := New("oil", "USA", 1, nil)
	m.StoreInfoFromLast(4, 5, 6)
	m.RestoreInfo()
	assert.Equal(t, 4.0, m.Demand())
	assert.Equal(t, 5.0, m.Supply())
	assert.Equal(t, 6.0, m.RawPrice())
}

func TestMarket_Lifecycle(t *testing.T) {
	m := New("oil", "USA", 0, nil)
	m.InitPrice()
	assert.Equal(t, PriceSet, m.State())
	m.BeginSolve()
	assert.Equal(t, Solving, m.State())
	m.MarkConverged()
	m.BeginSolve()
	assert.Equal(t, Converged, m.State())
	assert.Equal(t, "converged", m.State().String())
}

func TestMarket_DebugXML(t *testing.T) {
	m := New("oil", "USA", 5, FixedVariant(2))
	require.NoError(t, m.AddRegion("USA"))
	require.NoError(t, m.AddRegion("Canada"))
	m.InitPrice()
	m.AddToDemand(4)

	var buf bytes.Buffer
	require.NoError(t, m.WriteDebugXML(5, &buf))
	out := buf.String()
	assert.Contains(t, out, "<Market name=\"USAoil\" type=\"fixed\">\n")
	assert.Contains(t, out, "\t<period>5</period>\n")
	assert.Contains(t, out, "\t<ContainedRegion>USA</ContainedRegion>\n\t<ContainedRegion>Canada</ContainedRegion>\n")
	assert.Contains(t, out, "\t<demand>4</demand>\n")
	assert.Contains(t, out, "\t<fixedPrice>2</fixedPrice>\n")
	assert.Contains(t, out, "</Market>\n")

	buf.Reset()
	assert.ErrorIs(t, m.WriteDebugXML(4, &buf), ErrWrongPeriod)
	assert.Empty(t, buf.String())
}

func TestMarket_AccumulationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := New("g", "r", 0, nil)
		m.AddToDemand(rapid.Float64Range(0, 1e6).Draw(t, "stale"))
		m.NullDemand()
		m.NullSupply()

		demands := rapid.SliceOf(rapid.Float64Range(0, 1e6)).Draw(t, "demands")
		supplies := rapid.SliceOf(rapid.Float64Range(0, 1e6)).Draw(t, "supplies")
		var wantD, wantS float64
		for _, d := range demands {
			m.AddToDemand(d)
			wantD += d
		}
		for _, s := range supplies {
			m.AddToSupply(s)
			wantS += s
		}
		if m.Demand() != wantD {
			t.Fatalf("demand %v want %v", m.Demand(), wantD)
		}
		if m.Supply() != wantS {
			t.Fatalf("supply %v want %v", m.Supply(), wantS)
		}
	})
}

func TestMarket_StoreRestoreProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom([]Kind{Simple, Newton, Fixed, Constraint}).Draw(t, "kind")
		v, err := NewVariant(kind, 3)
		if err != nil {
			t.Fatal(err)
		}
		m := New("g", "r", 0, v)
		m.SetRawPrice(rapid.Float64Range(0, 1e4).Draw(t, "price"))
		m.AddToDemand(rapid.Float64Range(0, 1e4).Draw(t, "demand"))
		m.AddToSupply(rapid.Float64Range(0, 1e4).Draw(t, "supply"))
		p, d, s := m.RawPrice(), m.Demand(), m.Supply()
		m.StoreInfo()
		m.RestoreInfo()
		if m.RawPrice() != p || m.Demand() != d || m.Supply() != s {
			t.Fatalf("round trip changed state: %v %v %v", m.RawPrice(), m.Demand(), m.Supply())
		}
	})
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, s := range []State{Uninitialized, PriceSet, Solving, Converged} {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("melted")))
}
