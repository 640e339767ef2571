package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fungiwatch/internal/catalog"
	"fungiwatch/internal/models"
	"fungiwatch/internal/storage"
)

func obs(id int64, date, grade string, lon, lat float64) models.Observation {
	return models.Observation{
		ID:           id,
		ObservedOn:   date,
		QualityGrade: grade,
		GeoJSON:      &models.Geometry{Type: "Point", Coordinates: []float64{lon, lat}},
	}
}

func sampleRecords() []models.Observation {
	return []models.Observation{
		obs(1, "2023-01-05", models.GradeResearch, -122.68, 45.52),
		obs(2, "2023-02-10", models.GradeCasual, -123.03, 44.94),
		obs(3, "2024-01-20", models.GradeResearch, -121.31, 44.06),
	}
}

func TestSpeciesReportContent(t *testing.T) {
	gen := NewGenerator()
	species := catalog.Species{Name: "Morchella esculenta", TaxonID: 58682}
	now := time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)

	files, err := gen.SpeciesReport(species, sampleRecords(), now)
	require.NoError(t, err)

	html := string(files[storage.ReportFileName])
	require.NotEmpty(t, html)

	assert.Contains(t, html, "Morchella esculenta")
	assert.Contains(t, html, "58682")
	assert.Contains(t, html, "2024-01-25 12:00:00 UTC")
	// Monthly table: Jan has 2 observations across years, Feb has 1.
	assert.Contains(t, html, "<td>Jan</td>")
	assert.Contains(t, html, "<td>Feb</td>")
	// Historical labels carry the year.
	assert.Contains(t, html, "Jan 2023")
	assert.Contains(t, html, "Jan 2024")
	// Heatmap points are [lat, lon].
	assert.Contains(t, html, "[45.52,-122.68,1]")
	assert.Contains(t, html, "observation-map")
}

func TestSpeciesReportIncludesSeasonalChart(t *testing.T) {
	gen := NewGenerator()
	species := catalog.Species{Name: "Cantharellus formosus", TaxonID: 120443}

	files, err := gen.SpeciesReport(species, sampleRecords(), time.Now())
	require.NoError(t, err)

	png, ok := files[SeasonalChartFileName]
	require.True(t, ok, "seasonal chart should be rendered")
	// PNG magic bytes
	require.True(t, len(png) > 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestSpeciesReportEmptyRecords(t *testing.T) {
	gen := NewGenerator()
	species := catalog.Species{Name: "Boletus edulis", TaxonID: 48701}

	files, err := gen.SpeciesReport(species, nil, time.Now())
	require.NoError(t, err)

	html := string(files[storage.ReportFileName])
	assert.Contains(t, html, "No dated observations yet")
	assert.Contains(t, html, "No mapped observations")
}

func TestConsolidatedReportContent(t *testing.T) {
	gen := NewGenerator()
	entries := []ConsolidatedEntry{
		{Species: catalog.Species{Name: "Morchella esculenta", TaxonID: 58682}, Records: sampleRecords()},
		{Species: catalog.Species{Name: "Boletus edulis", TaxonID: 48701}, Records: nil},
	}

	files, err := gen.ConsolidatedReport(entries, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	html := string(files[storage.ReportFileName])
	assert.Contains(t, html, "All Tracked Species")
	assert.Contains(t, html, "Morchella esculenta")
	assert.Contains(t, html, "Boletus edulis")
	// Species with no records shows n/a for the latest observation.
	assert.Contains(t, html, "n/a")
}

func TestPublisherStoresAllFiles(t *testing.T) {
	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	pub := NewPublisher(client)
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	files := Files{
		storage.ReportFileName: []byte("<html>r</html>"),
		SeasonalChartFileName:  []byte{0x89, 'P', 'N', 'G'},
	}

	folder, err := pub.Publish(context.Background(), "Morchella esculenta", files, ts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(folder, "2024/03/15/morchella_esculenta-"))

	data, err := client.GetFile(context.Background(), folder+"/"+storage.ReportFileName)
	require.NoError(t, err)
	assert.Equal(t, "<html>r</html>", string(data))

	latest, err := pub.LatestReportPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, folder+"/"+storage.ReportFileName, latest)
}

func TestPublisherLatestReportPathEmpty(t *testing.T) {
	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	defer client.Close()

	latest, err := NewPublisher(client).LatestReportPath(context.Background())
	require.NoError(t, err)
	assert.Empty(t, latest)
}
