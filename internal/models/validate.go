package models

import "encoding/json"

// Valid reports whether an observation carries everything the cache is
// allowed to store: a source-assigned id, an observed_on date, and a
// two-value coordinate pair inside the valid longitude/latitude ranges.
func (o Observation) Valid() bool {
	if o.ID == 0 || o.ObservedOn == "" {
		return false
	}
	lon, lat, ok := o.Coordinates()
	if !ok {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// DecodeObservation parses one raw API record, stamps it with the quality
// grade of the query partition it came from, and validates it. Records that
// fail to decode or to validate are rejected (ok=false); decoding problems
// never propagate as errors.
func DecodeObservation(raw []byte, grade string) (Observation, bool) {
	var obs Observation
	if err := json.Unmarshal(raw, &obs); err != nil {
		return Observation{}, false
	}
	obs.QualityGrade = grade
	if !obs.Valid() {
		return Observation{}, false
	}
	return obs, true
}
