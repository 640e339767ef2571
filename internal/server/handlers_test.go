package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fungiwatch/internal/cache"
	"fungiwatch/internal/catalog"
	"fungiwatch/internal/config"
	"fungiwatch/internal/models"
	"fungiwatch/internal/observability"
	"fungiwatch/internal/storage"
	"fungiwatch/internal/syncer"
)

type stubFetcher struct {
	full map[int64][]models.Observation
	incr map[int64][]models.Observation
}

func (f *stubFetcher) FetchAll(ctx context.Context, taxonID int64) []models.Observation {
	return f.full[taxonID]
}

func (f *stubFetcher) FetchSince(ctx context.Context, taxonID int64, since string) []models.Observation {
	return f.incr[taxonID]
}

func obs(id int64, date, grade string) models.Observation {
	return models.Observation{
		ID:           id,
		ObservedOn:   date,
		QualityGrade: grade,
		GeoJSON:      &models.Geometry{Type: "Point", Coordinates: []float64{-122.68, 45.52}},
	}
}

func newTestServer(t *testing.T, fetcher syncer.Fetcher) (*Server, cache.Store, *catalog.Catalog) {
	t.Helper()

	store := cache.NewMemStore()
	cat := catalog.New(filepath.Join(t.TempDir(), "species.txt"))
	engine := syncer.New(store, fetcher, observability.NewMetricsForTesting())

	client, err := storage.NewLocalClient(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC))
	cfg := &config.Config{Port: "0"}

	return NewServer(cfg, engine, store, cat, client, clock), store, cat
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.SetupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])
}

func TestSpeciesLifecycle(t *testing.T) {
	srv, store, _ := newTestServer(t, &stubFetcher{})

	// Empty list to start.
	rec := doRequest(t, srv, http.MethodGet, "/species", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 0, list["count"])

	// Add.
	body, _ := json.Marshal(map[string]interface{}{"name": "Morchella esculenta", "taxon_id": 58682})
	rec = doRequest(t, srv, http.MethodPost, "/species", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate add conflicts.
	rec = doRequest(t, srv, http.MethodPost, "/species", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Listed now.
	rec = doRequest(t, srv, http.MethodGet, "/species", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list["count"])

	// Removing also drops the cache.
	require.NoError(t, store.Save(58682, []models.Observation{obs(1, "2023-01-05", models.GradeResearch)}))
	rec = doRequest(t, srv, http.MethodDelete, "/species?name=Morchella+esculenta", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, present, err := store.Load(58682)
	require.NoError(t, err)
	assert.False(t, present)

	// Removing again 404s.
	rec = doRequest(t, srv, http.MethodDelete, "/species?name=Morchella+esculenta", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSpeciesMigratesCache(t *testing.T) {
	srv, store, cat := newTestServer(t, &stubFetcher{})
	require.NoError(t, cat.Add("Boletus edulis", 48701))
	require.NoError(t, store.Save(48701, []models.Observation{obs(1, "2023-01-05", models.GradeResearch)}))

	body, _ := json.Marshal(map[string]interface{}{
		"name": "Boletus edulis", "new_name": "King bolete", "taxon_id": 48702,
	})
	rec := doRequest(t, srv, http.MethodPut, "/species", body)
	require.Equal(t, http.StatusOK, rec.Code)

	// The cache followed the taxon id.
	_, present, err := store.Load(48701)
	require.NoError(t, err)
	assert.False(t, present)
	records, present, err := store.Load(48702)
	require.NoError(t, err)
	require.True(t, present)
	assert.Len(t, records, 1)

	sp, found, err := cat.Lookup("King bolete")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(48702), sp.TaxonID)
}

func TestUpdateSpeciesUnknown(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	body, _ := json.Marshal(map[string]interface{}{"name": "nope", "taxon_id": 1})
	rec := doRequest(t, srv, http.MethodPut, "/species", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddSpeciesValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	cases := []map[string]interface{}{
		{"name": "", "taxon_id": 1},
		{"name": "x", "taxon_id": 0},
		{"name": "a,b", "taxon_id": 1},
	}
	for _, c := range cases {
		body, _ := json.Marshal(c)
		rec := doRequest(t, srv, http.MethodPost, "/species", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %v", c)
	}
}

func TestHandleUpdateColdStart(t *testing.T) {
	fetcher := &stubFetcher{
		full: map[int64][]models.Observation{
			58682: {obs(1, "2023-01-05", models.GradeResearch), obs(2, "2023-02-10", models.GradeCasual)},
		},
	}
	srv, store, cat := newTestServer(t, fetcher)
	require.NoError(t, cat.Add("Morchella esculenta", 58682))

	rec := doRequest(t, srv, http.MethodPost, "/update", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Results []struct {
			Species string `json:"species"`
			Outcome string `json:"outcome"`
			New     int    `json:"new"`
			Total   int    `json:"total"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "updated", payload.Results[0].Outcome)
	assert.Equal(t, 2, payload.Results[0].New)

	records, present, err := store.Load(58682)
	require.NoError(t, err)
	require.True(t, present)
	assert.Len(t, records, 2)
}

func TestHandleUpdateUnknownSpecies(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	rec := doRequest(t, srv, http.MethodPost, "/update?species=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRefreshRestoresOnEmptyFetch(t *testing.T) {
	fetcher := &stubFetcher{full: map[int64][]models.Observation{}}
	srv, store, cat := newTestServer(t, fetcher)
	require.NoError(t, cat.Add("Boletus edulis", 48701))

	prior := []models.Observation{obs(9, "2022-10-01", models.GradeResearch)}
	require.NoError(t, store.Save(48701, prior))

	rec := doRequest(t, srv, http.MethodPost, "/refresh?species=Boletus+edulis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "RESTORED", payload["state"])

	records, present, err := store.Load(48701)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, prior, records)
}

func TestHandleRefreshRequiresSpecies(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	rec := doRequest(t, srv, http.MethodPost, "/refresh", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerateSpeciesReport(t *testing.T) {
	fetcher := &stubFetcher{
		full: map[int64][]models.Observation{
			58682: {obs(1, "2023-01-05", models.GradeResearch)},
		},
	}
	srv, _, cat := newTestServer(t, fetcher)
	require.NoError(t, cat.Add("Morchella esculenta", 58682))

	rec := doRequest(t, srv, http.MethodPost, "/generate?species=Morchella+esculenta", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	reportURL, _ := payload["report"].(string)
	require.NotEmpty(t, reportURL)

	// The published report is retrievable through the file proxy.
	rec = doRequest(t, srv, http.MethodGet, reportURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Morchella esculenta")

	// Root redirects to the latest report.
	rec = doRequest(t, srv, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, reportURL, rec.Header().Get("Location"))
}

func TestHandleGenerateConsolidated(t *testing.T) {
	fetcher := &stubFetcher{
		full: map[int64][]models.Observation{
			58682: {obs(1, "2023-01-05", models.GradeResearch)},
			48701: {obs(2, "2023-06-15", models.GradeCasual)},
		},
	}
	srv, _, cat := newTestServer(t, fetcher)
	require.NoError(t, cat.Add("Morchella esculenta", 58682))
	require.NoError(t, cat.Add("Boletus edulis", 48701))

	rec := doRequest(t, srv, http.MethodPost, "/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.EqualValues(t, 2, payload["species"])

	rec = doRequest(t, srv, http.MethodGet, payload["report"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "All Tracked Species")
}

func TestHandleGenerateNoSpecies(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	rec := doRequest(t, srv, http.MethodPost, "/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListReports(t *testing.T) {
	fetcher := &stubFetcher{
		full: map[int64][]models.Observation{58682: {obs(1, "2023-01-05", models.GradeResearch)}},
	}
	srv, _, cat := newTestServer(t, fetcher)
	require.NoError(t, cat.Add("Morchella esculenta", 58682))

	rec := doRequest(t, srv, http.MethodPost, "/generate?species=Morchella+esculenta", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.EqualValues(t, 1, payload["count"])
}

func TestHandleFileProxyTraversalRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/files/x", nil)
	req.URL.Path = "/files/../species.txt"
	rec := httptest.NewRecorder()
	srv.SetupRoutes().ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestHandleCachePurge(t *testing.T) {
	srv, store, _ := newTestServer(t, &stubFetcher{})
	require.NoError(t, store.Save(58682, []models.Observation{obs(1, "2023-01-05", models.GradeResearch)}))

	rec := doRequest(t, srv, http.MethodPost, "/cache/purge", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, present, err := store.Load(58682)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubFetcher{})

	for _, target := range []string{"/update", "/refresh", "/generate", "/cache/purge"} {
		rec := doRequest(t, srv, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
	rec := doRequest(t, srv, http.MethodDelete, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
