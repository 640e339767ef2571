package models

import (
	"encoding/json"
	"time"
)

// Quality grades assigned by the observation source
const (
	GradeCasual   = "casual"
	GradeNeedsID  = "needs_id"
	GradeResearch = "research"
)

// QualityGrades lists all grades in fetch order
var QualityGrades = []string{GradeCasual, GradeNeedsID, GradeResearch}

// ObservedOnLayout is the calendar date format used by the observations API
const ObservedOnLayout = "2006-01-02"

// Geometry holds the GeoJSON point attached to an observation.
// Coordinates are ordered [longitude, latitude].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Observation is a single occurrence record for a taxon.
// ID is assigned by the remote source and is the dedup key.
type Observation struct {
	ID           int64     `json:"id"`
	ObservedOn   string    `json:"observed_on"`
	GeoJSON      *Geometry `json:"geojson"`
	QualityGrade string    `json:"quality_grade"`
}

// ObservationPage is one page of the observations API response
type ObservationPage struct {
	TotalResults int               `json:"total_results"`
	Page         int               `json:"page"`
	PerPage      int               `json:"per_page"`
	Results      []json.RawMessage `json:"results"`
}

// Coordinates returns the (longitude, latitude) pair of the observation
func (o Observation) Coordinates() (lon, lat float64, ok bool) {
	if o.GeoJSON == nil || len(o.GeoJSON.Coordinates) != 2 {
		return 0, 0, false
	}
	return o.GeoJSON.Coordinates[0], o.GeoJSON.Coordinates[1], true
}

// ObservedTime parses the observed_on date. The API returns plain calendar
// dates; longer timestamps are truncated to their date part.
func (o Observation) ObservedTime() (time.Time, error) {
	s := o.ObservedOn
	if len(s) > len(ObservedOnLayout) {
		s = s[:len(ObservedOnLayout)]
	}
	return time.Parse(ObservedOnLayout, s)
}

// LatestObservedOn returns the most recent observed_on date in the set as a
// YYYY-MM-DD string, or "" if no record carries a parseable date. Dates are
// compared as parsed times, not as raw strings.
func LatestObservedOn(records []Observation) string {
	var latest time.Time
	found := false
	for _, rec := range records {
		t, err := rec.ObservedTime()
		if err != nil {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	if !found {
		return ""
	}
	return latest.Format(ObservedOnLayout)
}
