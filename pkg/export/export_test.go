package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

func sampleResults() []solver.Result {
	return []solver.Result{
		{Period: 0, Converged: true, Markets: []solver.MarketResult{
			{Name: "Globaloil", Good: "oil", Region: "Global", Type: "newton", Price: 28.123456789, Demand: 56.2469135, Supply: 56.2469136, RelativeExcessDemand: -1.7e-9},
		}},
		{Period: 1, Converged: false, Markets: []solver.MarketResult{
			{Name: "Chinacoal", Good: "coal", Region: "China", Type: "fixed", Price: 12, Demand: 18},
		}},
	}
}

func TestRows_Rounding(t *testing.T) {
	rows := Rows(sampleResults(), 3)
	require.Len(t, rows, 2)
	assert.Equal(t, "28.123", rows[0].Price.String())
	assert.Equal(t, "56.247", rows[0].Supply.String())
	assert.Equal(t, 1, rows[1].Period)
	assert.False(t, rows[1].Converged)
	assert.Equal(t, "12", rows[1].Price.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Rows(sampleResults(), DefaultPlaces)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "period,market,good,region,type,price,demand,supply,relative_excess_demand,converged", lines[0])
	assert.Equal(t, "0,Globaloil,oil,Global,newton,28.123457,56.246914,56.246914,-1.7e-09,true", lines[1])
	assert.Equal(t, "1,Chinacoal,coal,China,fixed,12,18,0,0,false", lines[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, Rows(sampleResults(), 2)))
	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "28.12", out[0]["price"])
	assert.Equal(t, "Chinacoal", out[1]["market"])
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	rows := Rows(sampleResults(), DefaultPlaces)
	require.NoError(t, WriteFile(filepath.Join(dir, "prices.csv"), rows))
	require.NoError(t, WriteFile(filepath.Join(dir, "prices.JSON"), rows))
	assert.Error(t, WriteFile(filepath.Join(dir, "prices.xlsx"), rows))

	data, err := os.ReadFile(filepath.Join(dir, "prices.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "period,"))
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChart(&buf, Rows(sampleResults(), DefaultPlaces)))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Market prices")
	assert.Contains(t, out, "Globaloil")
	assert.Contains(t, out, "Chinacoal")

	path := filepath.Join(t.TempDir(), "prices.html")
	require.NoError(t, WriteFile(path, Rows(sampleResults(), DefaultPlaces)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}
