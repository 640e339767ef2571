package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"fungiwatch/internal/models"
	"fungiwatch/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, url string, pageSize int) *ObservationFetcher {
	t.Helper()
	return NewObservationFetcher(Options{
		BaseURL:  url,
		PlaceIDs: []int{10},
		PageSize: pageSize,
		Metrics:  observability.NewMetricsForTesting(),
	})
}

func pageBody(records ...map[string]interface{}) []byte {
	body, _ := json.Marshal(map[string]interface{}{"results": records})
	return body
}

func rawObs(id int, date string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"observed_on": date,
		"geojson":     map[string]interface{}{"type": "Point", "coordinates": []float64{-122.6, 45.5}},
	}
}

func TestFetchAllPagesUntilShortPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grade := r.URL.Query().Get("quality_grade")
		page := r.URL.Query().Get("page")
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		if grade == models.GradeResearch && page == "1" {
			w.Write(pageBody(rawObs(1, "2023-01-05"), rawObs(2, "2023-02-10")))
			return
		}
		if grade == models.GradeResearch && page == "2" {
			w.Write(pageBody(rawObs(3, "2023-03-15")))
			return
		}
		w.Write(pageBody())
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 2)
	records := fetcher.FetchAll(context.Background(), 48701)

	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, models.GradeResearch, rec.QualityGrade)
	}
}

func TestFetchAllDropsInvalidRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quality_grade") != models.GradeCasual {
			w.Write(pageBody())
			return
		}
		bad := map[string]interface{}{"id": 9, "observed_on": ""}
		outOfRange := map[string]interface{}{
			"id": 10, "observed_on": "2023-04-01",
			"geojson": map[string]interface{}{"coordinates": []float64{200, 45}},
		}
		w.Write(pageBody(rawObs(1, "2023-01-05"), bad, outOfRange))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 200)
	records := fetcher.FetchAll(context.Background(), 48701)

	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0].ID)
}

func TestFetchSinceSetsDateBoundAndOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-20", r.URL.Query().Get("d1"))
		assert.Equal(t, "observed_on", r.URL.Query().Get("order_by"))
		assert.Equal(t, "desc", r.URL.Query().Get("order"))
		w.Write(pageBody(rawObs(7, "2024-02-02")))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 200)
	records := fetcher.FetchSince(context.Background(), 48701, "2024-01-20")

	require.Len(t, records, 3) // one record per quality grade partition
	assert.Equal(t, int64(7), records[0].ID)
}

func TestFetchAllPartitionFailureDoesNotAbortSiblings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quality_grade") == models.GradeCasual {
			http.Error(w, "upstream blew up", http.StatusInternalServerError)
			return
		}
		w.Write(pageBody(rawObs(1, "2023-01-05")))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 200)
	records := fetcher.FetchAll(context.Background(), 48701)

	// casual partition lost, needs_id and research still delivered
	require.Len(t, records, 2)
}

func TestFetchAllCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Write(pageBody(rawObs(1, "2023-01-05")))
			cancel()
			return
		}
		w.Write(pageBody(rawObs(2, "2023-02-10")))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 200)
	records := fetcher.FetchAll(ctx, 48701)

	require.Len(t, records, 1, "accumulated records survive cancellation")
	assert.Equal(t, int64(1), records[0].ID)
}

func TestFetchPageRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL, 200)
	_, _, err := fetcher.fetchPage(context.Background(), 48701, 10, models.GradeResearch, "", 1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("status %d", http.StatusTooManyRequests))
}
