package export

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders an HTML line chart of every market price across periods.
func WriteChart(w io.Writer, rows []Row) error {
	var periods []int
	var markets []string
	prices := make(map[string]map[int]float64)
	for _, r := range rows {
		if !slices.Contains(periods, r.Period) {
			periods = append(periods, r.Period)
		}
		if _, ok := prices[r.Market]; !ok {
			markets = append(markets, r.Market)
			prices[r.Market] = make(map[int]float64)
		}
		prices[r.Market][r.Period] = r.Price.InexactFloat64()
	}
	slices.Sort(periods)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Market prices"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price"}),
	)
	xAxis := make([]string, len(periods))
	for i, p := range periods {
		xAxis[i] = strconv.Itoa(p)
	}
	line.SetXAxis(xAxis)
	for _, m := range markets {
		data := make([]opts.LineData, len(periods))
		for i, p := range periods {
			if v, ok := prices[m][p]; ok {
				data[i] = opts.LineData{Value: v}
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(m, data)
	}
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
