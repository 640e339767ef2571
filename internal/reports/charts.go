package reports

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"fungiwatch/internal/models"
	"fungiwatch/internal/stats"
)

// gradeLabels maps quality grade keys to display names, in chart stacking order.
var gradeLabels = []struct {
	Key   string
	Label string
}{
	{models.GradeResearch, "Research"},
	{models.GradeNeedsID, "Needs ID"},
	{models.GradeCasual, "Casual"},
}

// generateMonthlyChart creates a stacked bar chart of observations per
// calendar month, split by quality grade.
func (g *Generator) generateMonthlyChart(rows []stats.MonthlyRow) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "800px",
			Height: "400px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Monthly Activity",
			Subtitle: "All-time observations per calendar month",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Month",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Observations",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
		}),
	)

	xAxis := make([]string, len(rows))
	for i, row := range rows {
		xAxis[i] = row.Label
	}

	bar.SetXAxis(xAxis)
	for _, grade := range gradeLabels {
		data := make([]opts.BarData, len(rows))
		for i, row := range rows {
			data[i] = opts.BarData{Value: row.Counts[grade.Key]}
		}
		bar.AddSeries(grade.Label, data)
	}
	bar.SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// generateHistoricalChart creates a line chart of observation totals per
// (year, month) bucket.
func (g *Generator) generateHistoricalChart(rows []stats.HistoricalRow) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "800px",
			Height: "400px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Historical Trend",
			Subtitle: "Observations per month over time",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Month",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Observations",
		}),
	)

	xAxis := make([]string, len(rows))
	totals := make([]opts.LineData, len(rows))
	for i, row := range rows {
		xAxis[i] = row.Label
		totals[i] = opts.LineData{Value: row.Total}
	}

	line.SetXAxis(xAxis).
		AddSeries("Total", totals).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// generateComparisonChart creates a bar chart comparing total observations
// across species, used by the consolidated report.
func (g *Generator) generateComparisonChart(entries []ConsolidatedEntry) (string, error) {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "800px",
			Height: "400px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Species Comparison",
			Subtitle: "Total observations per species",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Species",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Observations",
		}),
	)

	xAxis := make([]string, len(entries))
	totals := make([]opts.BarData, len(entries))
	for i, entry := range entries {
		xAxis[i] = entry.Species.Name
		totals[i] = opts.BarData{Value: len(entry.Records)}
	}

	bar.SetXAxis(xAxis).AddSeries("Observations", totals)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// generateSeasonalPNG renders the seasonal outlook as a static PNG bar chart,
// stored alongside the report for embedding and offline use.
func (g *Generator) generateSeasonalPNG(outlook stats.SeasonalOutlook) ([]byte, error) {
	months := []stats.MonthOutlook{outlook.Previous, outlook.Current, outlook.Next}

	bars := make([]chart.Value, len(months))
	for i, m := range months {
		bars[i] = chart.Value{
			Value: m.Average,
			Label: m.Month.String()[:3],
			Style: chart.Style{
				FillColor: seasonalBarColor(i == 1),
			},
		}
	}

	graph := chart.BarChart{
		Title: "Seasonal Outlook (avg observations per year)",
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: drawing.ColorBlack,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   40,
				Right:  20,
				Bottom: 20,
			},
		},
		Height:   300,
		Width:    500,
		BarWidth: 80,
		Bars:     bars,
		YAxis: chart.YAxis{
			Name: "Average",
			NameStyle: chart.Style{
				FontSize: 12,
			},
			Style: chart.Style{
				FontSize: 10,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render seasonal chart: %w", err)
	}
	return buf.Bytes(), nil
}

// seasonalBarColor highlights the current month bar.
func seasonalBarColor(current bool) drawing.Color {
	if current {
		return drawing.Color{R: 102, G: 126, B: 234, A: 255} // Indigo
	}
	return drawing.Color{R: 171, G: 184, B: 240, A: 255} // Lighter indigo
}
