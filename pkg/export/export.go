// Package export writes solved market prices to CSV or JSON files, or
// renders them as an HTML chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SebastianAlessandro/gcam-core/core/solver"
)

// DefaultPlaces is the number of decimal places kept for prices and quantities.
const DefaultPlaces = 6

// Row is the exported state of one market in one period.
type Row struct {
	Period               int             `json:"period"`
	Market               string          `json:"market"`
	Good                 string          `json:"good"`
	Region               string          `json:"region"`
	Type                 string          `json:"type"`
	Price                decimal.Decimal `json:"price"`
	Demand               decimal.Decimal `json:"demand"`
	Supply               decimal.Decimal `json:"supply"`
	RelativeExcessDemand float64         `json:"relative_excess_demand"`
	Converged            bool            `json:"converged"`
}

// Rows flattens period results into rows, rounding prices and quantities
// half away from zero to places decimals.
func Rows(results []solver.Result, places int32) []Row {
	var rows []Row
	for _, res := range results {
		for _, m := range res.Markets {
			rows = append(rows, Row{
				Period:               res.Period,
				Market:               m.Name,
				Good:                 m.Good,
				Region:               m.Region,
				Type:                 m.Type,
				Price:                decimal.NewFromFloat(m.Price).Round(places),
				Demand:               decimal.NewFromFloat(m.Demand).Round(places),
				Supply:               decimal.NewFromFloat(m.Supply).Round(places),
				RelativeExcessDemand: m.RelativeExcessDemand,
				Converged:            res.Converged,
			})
		}
	}
	return rows
}

// WriteJSON writes the rows to w in JSON format.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteCSV writes the rows to w in CSV format with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"period", "market", "good", "region", "type", "price", "demand", "supply", "relative_excess_demand", "converged"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.Period),
			r.Market,
			r.Good,
			r.Region,
			r.Type,
			r.Price.String(),
			r.Demand.String(),
			r.Supply.String(),
			strconv.FormatFloat(r.RelativeExcessDemand, 'g', 6, 64),
			strconv.FormatBool(r.Converged),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, choosing the format from its extension.
func WriteFile(path string, rows []Row) (err error) {
	var write func(io.Writer, []Row) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".json":
		write = WriteJSON
	case ".html":
		write = WriteChart
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, rows)
}
