package reports

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"fungiwatch/internal/catalog"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
	"fungiwatch/internal/stats"
	"fungiwatch/internal/storage"
)

// Files maps report file names to their rendered contents. Every report
// folder contains at least ReportFileName; chart images are siblings.
type Files map[string][]byte

// SeasonalChartFileName is the static seasonal outlook image stored next to
// the report entry point.
const SeasonalChartFileName = "seasonal.png"

// ConsolidatedEntry pairs a catalog species with its cached observations for
// the consolidated report.
type ConsolidatedEntry struct {
	Species catalog.Species
	Records []models.Observation
}

// Generator renders species and consolidated HTML reports
type Generator struct {
	log *logger.Logger
}

// NewGenerator creates a new report generator
func NewGenerator() *Generator {
	return &Generator{
		log: logger.GetGlobalLogger().WithComponent("reports"),
	}
}

// SpeciesReport renders the full report for one species: summary cards,
// seasonal outlook, monthly and historical breakdowns, grade distribution,
// an observation heatmap, and embedded charts.
func (g *Generator) SpeciesReport(species catalog.Species, records []models.Observation, now time.Time) (Files, error) {
	g.log.Info("Generating species report", logger.Fields{
		"species": species.Name,
		"records": len(records),
	})

	monthly := stats.MonthlyTotals(records)
	historical := stats.HistoricalTotals(records)
	seasonal := stats.Seasonal(records, now.Month())

	monthlyChart, err := g.generateMonthlyChart(monthly)
	if err != nil {
		g.log.Warn("Monthly chart unavailable", logger.Fields{"error": err.Error()})
		monthlyChart = "<p>Monthly chart unavailable</p>"
	}
	historicalChart, err := g.generateHistoricalChart(historical)
	if err != nil {
		g.log.Warn("Historical chart unavailable", logger.Fields{"error": err.Error()})
		historicalChart = "<p>Historical chart unavailable</p>"
	}

	title := fmt.Sprintf("%s (taxon %d)", species.Name, species.TaxonID)
	var body strings.Builder
	body.WriteString(g.buildSummaryCards(records, seasonal))
	body.WriteString(g.buildSeasonalSection(seasonal))
	body.WriteString(section("Monthly Activity", monthlyChart+g.buildMonthlyTable(monthly)))
	body.WriteString(section("Historical Trend", historicalChart+g.buildHistoricalTable(historical)))
	body.WriteString(section("Quality Grades", g.buildGradeTable(records)))
	body.WriteString(section("Observation Map", g.buildHeatmapSnippet(records)))

	files := Files{
		storage.ReportFileName: []byte(g.buildDocument(title, body.String(), now)),
	}

	if png, err := g.generateSeasonalPNG(seasonal); err == nil {
		files[SeasonalChartFileName] = png
	} else {
		g.log.Warn("Seasonal chart unavailable", logger.Fields{"error": err.Error()})
	}

	return files, nil
}

// ConsolidatedReport renders an overview report across all tracked species.
func (g *Generator) ConsolidatedReport(entries []ConsolidatedEntry, now time.Time) (Files, error) {
	g.log.Info("Generating consolidated report", logger.Fields{"species": len(entries)})

	comparisonChart, err := g.generateComparisonChart(entries)
	if err != nil {
		g.log.Warn("Comparison chart unavailable", logger.Fields{"error": err.Error()})
		comparisonChart = "<p>Comparison chart unavailable</p>"
	}

	var all []models.Observation
	for _, entry := range entries {
		all = append(all, entry.Records...)
	}
	monthly := stats.MonthlyTotals(all)
	monthlyChart, err := g.generateMonthlyChart(monthly)
	if err != nil {
		monthlyChart = "<p>Monthly chart unavailable</p>"
	}

	var body strings.Builder
	body.WriteString(section("Tracked Species", g.buildSpeciesTable(entries, now)))
	body.WriteString(section("Species Comparison", comparisonChart))
	body.WriteString(section("Combined Monthly Activity", monthlyChart+g.buildMonthlyTable(monthly)))
	body.WriteString(section("Combined Observation Map", g.buildHeatmapSnippet(all)))

	return Files{
		storage.ReportFileName: []byte(g.buildDocument("All Tracked Species", body.String(), now)),
	}, nil
}

// buildSummaryCards renders the headline metric cards.
func (g *Generator) buildSummaryCards(records []models.Observation, seasonal stats.SeasonalOutlook) string {
	grades := stats.GradeDistribution(records)
	researchShare := 0.0
	if len(records) > 0 {
		researchShare = float64(grades[models.GradeResearch]) / float64(len(records)) * 100
	}

	latest := models.LatestObservedOn(records)
	if latest == "" {
		latest = "n/a"
	}

	mapped := 0
	for _, rec := range records {
		if _, _, ok := rec.Coordinates(); ok {
			mapped++
		}
	}

	return fmt.Sprintf(`
    <div class="summary-cards">
        <div class="card">
            <h3>Observations</h3>
            <div class="metric">%d</div>
            <div>Total on record</div>
        </div>
        <div class="card">
            <h3>Research Grade</h3>
            <div class="metric">%.1f%%</div>
            <div>%d observations</div>
        </div>
        <div class="card">
            <h3>Latest Observation</h3>
            <div class="metric">%s</div>
            <div>Most recent observed date</div>
        </div>
        <div class="card">
            <h3>This Month</h3>
            <div class="metric">%.1f</div>
            <div>Average observations per year</div>
        </div>
    </div>`,
		len(records),
		researchShare,
		grades[models.GradeResearch],
		template.HTMLEscapeString(latest),
		seasonal.Current.Average,
	)
}

// buildSeasonalSection renders the previous/current/next month outlook cards.
func (g *Generator) buildSeasonalSection(outlook stats.SeasonalOutlook) string {
	card := func(o stats.MonthOutlook, class string) string {
		return fmt.Sprintf(`
        <div class="card %s">
            <h3>%s</h3>
            <div class="metric">%.1f / year</div>
            <div>%d total</div>
        </div>`, class, o.Month.String(), o.Average, o.Total)
	}

	cards := card(outlook.Previous, "") +
		card(outlook.Current, "card-current") +
		card(outlook.Next, "")
	return section("Seasonal Outlook", fmt.Sprintf(`<div class="summary-cards">%s</div>`, cards))
}

// buildMonthlyTable renders the per-calendar-month breakdown table.
func (g *Generator) buildMonthlyTable(rows []stats.MonthlyRow) string {
	if len(rows) == 0 {
		return "<p>No dated observations yet</p>"
	}

	var buf strings.Builder
	buf.WriteString(`<table><thead><tr><th>Month</th><th>Casual</th><th>Needs ID</th><th>Research</th><th>Total</th></tr></thead><tbody>`)
	grand := 0
	for _, row := range rows {
		grand += row.Total
		buf.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
			row.Label,
			row.Counts[models.GradeCasual],
			row.Counts[models.GradeNeedsID],
			row.Counts[models.GradeResearch],
			row.Total,
		))
	}
	buf.WriteString(fmt.Sprintf(`<tr class="total-row"><td>All</td><td colspan="3"></td><td>%d</td></tr>`, grand))
	buf.WriteString(`</tbody></table>`)
	return buf.String()
}

// buildHistoricalTable renders the per-(year, month) breakdown table.
func (g *Generator) buildHistoricalTable(rows []stats.HistoricalRow) string {
	if len(rows) == 0 {
		return "<p>No dated observations yet</p>"
	}

	var buf strings.Builder
	buf.WriteString(`<table><thead><tr><th>Month</th><th>Casual</th><th>Needs ID</th><th>Research</th><th>Total</th></tr></thead><tbody>`)
	for _, row := range rows {
		buf.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
			row.Label,
			row.Counts[models.GradeCasual],
			row.Counts[models.GradeNeedsID],
			row.Counts[models.GradeResearch],
			row.Total,
		))
	}
	buf.WriteString(`</tbody></table>`)
	return buf.String()
}

// buildGradeTable renders the quality grade distribution with percentages.
func (g *Generator) buildGradeTable(records []models.Observation) string {
	grades := stats.GradeDistribution(records)
	total := len(records)
	if total == 0 {
		return "<p>No observations yet</p>"
	}

	labels := map[string]string{
		models.GradeCasual:   "Casual",
		models.GradeNeedsID:  "Needs ID",
		models.GradeResearch: "Research",
	}

	var buf strings.Builder
	buf.WriteString(`<table><thead><tr><th>Grade</th><th>Count</th><th>Share</th></tr></thead><tbody>`)
	for _, grade := range models.QualityGrades {
		n := grades[grade]
		buf.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%d</td><td>%.1f%%</td></tr>`,
			labels[grade], n, float64(n)/float64(total)*100))
	}
	buf.WriteString(fmt.Sprintf(`<tr class="total-row"><td>All</td><td>%d</td><td>100.0%%</td></tr>`, total))
	buf.WriteString(`</tbody></table>`)
	return buf.String()
}

// buildSpeciesTable renders the consolidated per-species summary table.
func (g *Generator) buildSpeciesTable(entries []ConsolidatedEntry, now time.Time) string {
	if len(entries) == 0 {
		return "<p>No species tracked yet</p>"
	}

	var buf strings.Builder
	buf.WriteString(`<table><thead><tr><th>Species</th><th>Taxon</th><th>Observations</th><th>Research</th><th>Latest</th><th>Avg this month</th></tr></thead><tbody>`)
	for _, entry := range entries {
		grades := stats.GradeDistribution(entry.Records)
		latest := models.LatestObservedOn(entry.Records)
		if latest == "" {
			latest = "n/a"
		}
		seasonal := stats.Seasonal(entry.Records, now.Month())
		buf.WriteString(fmt.Sprintf(`<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td><td>%.1f</td></tr>`,
			template.HTMLEscapeString(entry.Species.Name),
			entry.Species.TaxonID,
			len(entry.Records),
			grades[models.GradeResearch],
			template.HTMLEscapeString(latest),
			seasonal.Current.Average,
		))
	}
	buf.WriteString(`</tbody></table>`)
	return buf.String()
}

// section wraps content in a titled report section.
func section(title, content string) string {
	return fmt.Sprintf(`
    <div class="content">
        <h2>%s</h2>
        %s
    </div>`, title, content)
}
