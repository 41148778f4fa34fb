// Package plots renders a station series as go-echarts charts.
package plots

import (
	"errors"
	"fmt"
	"io"

	"bikeshare-monitor/internal/modules/monitoring/types"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	hourLabelLayout = "2006-01-02 15:04"
	errorAreaColor  = "#F77F00"
	maeRuleColor    = "red"

	RidesSeriesName     = "Rides"
	PredictedSeriesName = "Predicted Demand"
	ErrorSeriesName     = "Absolute Error"
)

// ErrNoRecords is returned when there is nothing to plot.
var ErrNoRecords = errors.New("no records to plot")

func hourLabels(series types.StationSeries) []string {
	labels := make([]string, len(series.Records))
	for i, r := range series.Records {
		labels[i] = r.Hour.UTC().Format(hourLabelLayout)
	}
	return labels
}

// MAELabel is the text shown on the mean absolute error rule.
func MAELabel(mae float64) string {
	return fmt.Sprintf("MAE %.2f", mae)
}

// Comparison plots observed rides against predicted demand per hour.
func Comparison(series types.StationSeries) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Actual vs. Predicted Rides",
			Subtitle: fmt.Sprintf("Station %s, last %d h", series.StationID, series.WindowHours),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Ride Count"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	rides := make([]opts.LineData, 0, len(series.Records))
	predicted := make([]opts.LineData, 0, len(series.Records))
	for _, r := range series.Records {
		rides = append(rides, opts.LineData{Value: r.Rides})
		predicted = append(predicted, opts.LineData{Value: r.PredictedDemand})
	}

	withPoints := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)})
	line.SetXAxis(hourLabels(series)).
		AddSeries(RidesSeriesName, rides, withPoints).
		AddSeries(PredictedSeriesName, predicted, withPoints)
	return line
}

// ErrorOverTime plots the absolute error as an area with a horizontal rule
// at the mean absolute error.
func ErrorOverTime(series types.StationSeries) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "250px"}),
		charts.WithTitleOpts(opts.Title{Title: "Error Over Time with MAE Highlight"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Absolute Error"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	errs := make([]opts.LineData, 0, len(series.Records))
	for _, r := range series.Records {
		errs = append(errs, opts.LineData{Value: r.AbsoluteError})
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithAreaStyleOpts(opts.AreaStyle{Color: errorAreaColor}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: errorAreaColor}),
	}
	if series.Summary != nil {
		seriesOpts = append(seriesOpts,
			charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{
				Name:  MAELabel(series.Summary.MeanAbsoluteError),
				YAxis: series.Summary.MeanAbsoluteError,
			}),
			charts.WithMarkLineStyleOpts(opts.MarkLineStyle{
				Symbol: []string{"none", "none"},
				Label: &opts.Label{
					Show:      opts.Bool(true),
					Color:     maeRuleColor,
					Position:  "insideStartTop",
					Formatter: "{b}",
				},
			}),
		)
	}

	line.SetXAxis(hourLabels(series)).
		AddSeries(ErrorSeriesName, errs, seriesOpts...)
	return line
}

// RenderStationPage writes an HTML page holding both charts.
func RenderStationPage(w io.Writer, series types.StationSeries) error {
	if series.Empty() {
		return ErrNoRecords
	}
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Station %s", series.StationID)
	page.AddCharts(
		Comparison(series),
		ErrorOverTime(series),
	)
	return page.Render(w)
}
