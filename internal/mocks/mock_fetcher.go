package mocks

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
)

// MockFetcher produces deterministic synthetic observations without touching
// the network. Used in mockup mode for local development and demos.
type MockFetcher struct {
	now time.Time
	log *logger.Logger
}

// NewMockFetcher creates a mock fetcher anchored at the given time.
func NewMockFetcher(now time.Time) *MockFetcher {
	return &MockFetcher{
		now: now,
		log: logger.GetGlobalLogger().WithComponent("mock_fetcher"),
	}
}

// FetchAll returns the full synthetic record set for a taxon. The set is a
// pure function of the taxon id, so repeated calls are identical.
func (m *MockFetcher) FetchAll(ctx context.Context, taxonID int64) []models.Observation {
	records := m.generate(taxonID)
	m.log.Info("Serving mock observations", logger.Fields{
		"taxon_id": taxonID, "records": len(records),
	})
	return records
}

// FetchSince returns the synthetic records observed on or after since.
func (m *MockFetcher) FetchSince(ctx context.Context, taxonID int64, since string) []models.Observation {
	cutoff, err := time.Parse(models.ObservedOnLayout, since)
	if err != nil {
		return m.FetchAll(ctx, taxonID)
	}

	var filtered []models.Observation
	for _, rec := range m.generate(taxonID) {
		t, err := rec.ObservedTime()
		if err != nil {
			continue
		}
		if !t.Before(cutoff) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// generate builds two years of observations seeded by the taxon id, spread
// over an Oregon-shaped bounding box with a fall-heavy seasonal skew.
func (m *MockFetcher) generate(taxonID int64) []models.Observation {
	rng := rand.New(rand.NewSource(taxonID))

	count := 40 + rng.Intn(120)
	records := make([]models.Observation, 0, count)
	for i := 0; i < count; i++ {
		daysBack := rng.Intn(730)
		observed := m.now.AddDate(0, 0, -daysBack)

		// Bias toward autumn months.
		if month := observed.Month(); month >= time.April && month <= time.July && rng.Intn(3) != 0 {
			observed = observed.AddDate(0, 4, 0)
			if observed.After(m.now) {
				observed = observed.AddDate(-1, 0, 0)
			}
		}

		grade := models.QualityGrades[rng.Intn(len(models.QualityGrades))]
		lon := -124.5 + rng.Float64()*7.5 // Oregon spans roughly -124.5..-117
		lat := 42.0 + rng.Float64()*4.3   // and 42..46.3

		records = append(records, models.Observation{
			ID:           taxonID*1_000_000 + int64(i),
			ObservedOn:   observed.Format(models.ObservedOnLayout),
			QualityGrade: grade,
			GeoJSON: &models.Geometry{
				Type:        "Point",
				Coordinates: []float64{lon, lat},
			},
		})
	}
	return records
}

// String identifies the fetcher in startup logs.
func (m *MockFetcher) String() string {
	return fmt.Sprintf("MockFetcher(now=%s)", m.now.Format(models.ObservedOnLayout))
}
