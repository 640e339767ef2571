package stats

import (
	"fmt"
	"sort"
	"time"

	"fungiwatch/internal/models"
)

// MonthlyRow is the all-time total for one calendar month, cross-tabulated
// by quality grade.
type MonthlyRow struct {
	Month  time.Month
	Label  string // "Jan" .. "Dec"
	Counts map[string]int
	Total  int
}

// HistoricalRow is the total for one (year, month) bucket.
type HistoricalRow struct {
	Year   int
	Month  time.Month
	Label  string // "Jan 2023"
	Counts map[string]int
	Total  int
}

// MonthOutlook is the derived seasonal statistic for one calendar month:
// the per-year average count and the all-time total.
type MonthOutlook struct {
	Month   time.Month
	Average float64
	Total   int
}

// SeasonalOutlook covers the month before, the reference month, and the
// month after.
type SeasonalOutlook struct {
	Previous MonthOutlook
	Current  MonthOutlook
	Next     MonthOutlook
}

func monthLabel(m time.Month) string {
	return m.String()[:3]
}

// MonthlyTotals buckets every record by the calendar month of observed_on,
// cross-tabulated by quality grade. Only months with at least one
// observation appear, in calendar order. Records with unparseable dates are
// skipped.
func MonthlyTotals(records []models.Observation) []MonthlyRow {
	byMonth := make(map[time.Month]map[string]int)
	for _, rec := range records {
		t, err := rec.ObservedTime()
		if err != nil {
			continue
		}
		m := t.Month()
		if byMonth[m] == nil {
			byMonth[m] = make(map[string]int)
		}
		byMonth[m][rec.QualityGrade]++
	}

	rows := make([]MonthlyRow, 0, len(byMonth))
	for m := time.January; m <= time.December; m++ {
		counts, present := byMonth[m]
		if !present {
			continue
		}
		row := MonthlyRow{Month: m, Label: monthLabel(m), Counts: counts}
		for _, n := range counts {
			row.Total += n
		}
		rows = append(rows, row)
	}
	return rows
}

// HistoricalTotals buckets records by (year, month), in chronological order.
func HistoricalTotals(records []models.Observation) []HistoricalRow {
	type ym struct {
		year  int
		month time.Month
	}
	byBucket := make(map[ym]map[string]int)
	for _, rec := range records {
		t, err := rec.ObservedTime()
		if err != nil {
			continue
		}
		key := ym{t.Year(), t.Month()}
		if byBucket[key] == nil {
			byBucket[key] = make(map[string]int)
		}
		byBucket[key][rec.QualityGrade]++
	}

	keys := make([]ym, 0, len(byBucket))
	for key := range byBucket {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	rows := make([]HistoricalRow, 0, len(keys))
	for _, key := range keys {
		row := HistoricalRow{
			Year:   key.year,
			Month:  key.month,
			Label:  fmt.Sprintf("%s %d", monthLabel(key.month), key.year),
			Counts: byBucket[key],
		}
		for _, n := range byBucket[key] {
			row.Total += n
		}
		rows = append(rows, row)
	}
	return rows
}

// Seasonal derives the outlook for the months around the reference month.
// The average for a month is the mean of its per-year counts across the
// years that actually have observations in that month; a month with no
// history yields average 0 and total 0.
func Seasonal(records []models.Observation, current time.Month) SeasonalOutlook {
	type ym struct {
		year  int
		month time.Month
	}
	perYear := make(map[ym]int)
	for _, rec := range records {
		t, err := rec.ObservedTime()
		if err != nil {
			continue
		}
		perYear[ym{t.Year(), t.Month()}]++
	}

	outlook := func(m time.Month) MonthOutlook {
		total, years := 0, 0
		for key, n := range perYear {
			if key.month == m {
				total += n
				years++
			}
		}
		o := MonthOutlook{Month: m, Total: total}
		if years > 0 {
			o.Average = float64(total) / float64(years)
		}
		return o
	}

	return SeasonalOutlook{
		Previous: outlook(prevMonth(current)),
		Current:  outlook(current),
		Next:     outlook(nextMonth(current)),
	}
}

// GradeDistribution counts records per quality grade.
func GradeDistribution(records []models.Observation) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.QualityGrade]++
	}
	return counts
}

func prevMonth(m time.Month) time.Month {
	if m == time.January {
		return time.December
	}
	return m - 1
}

func nextMonth(m time.Month) time.Month {
	if m == time.December {
		return time.January
	}
	return m + 1
}
