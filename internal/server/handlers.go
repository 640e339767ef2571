package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fungiwatch/internal/catalog"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/reports"
	"fungiwatch/internal/storage"
	"fungiwatch/internal/syncer"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// HandleRoot redirects to the latest published report.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	latest, err := s.Publisher.LatestReportPath(r.Context())
	if err != nil || latest == "" {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Species Observation Tracker</h1><p>No reports generated yet. POST /generate to create one.</p></body></html>")
		return
	}

	w.Header().Set("Location", "/files/"+latest)
	w.WriteHeader(http.StatusFound)
}

// HandleHealth provides the health check endpoint.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.Clock.Now().UTC().Format(time.RFC3339),
	})
}

// HandleSpecies manages the tracked-species catalog:
// GET lists, POST adds, DELETE removes (and drops the species cache).
func (s *Server) HandleSpecies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listSpecies(w, r)
	case http.MethodPost:
		s.addSpecies(w, r)
	case http.MethodPut:
		s.updateSpecies(w, r)
	case http.MethodDelete:
		s.removeSpecies(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listSpecies(w http.ResponseWriter, r *http.Request) {
	species, err := s.Catalog.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type entry struct {
		Name    string `json:"name"`
		TaxonID int64  `json:"taxon_id"`
	}
	list := make([]entry, 0, len(species))
	for _, sp := range species {
		list = append(list, entry{Name: sp.Name, TaxonID: sp.TaxonID})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"species": list,
		"count":   len(list),
	})
}

func (s *Server) addSpecies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		TaxonID int64  `json:"taxon_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.TaxonID <= 0 {
		s.writeError(w, http.StatusBadRequest, "name and a positive taxon_id are required")
		return
	}
	if strings.Contains(req.Name, ",") {
		s.writeError(w, http.StatusBadRequest, "name must not contain a comma")
		return
	}

	if err := s.Catalog.Add(req.Name, req.TaxonID); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.log.Info("Species added", logger.Fields{"name": req.Name, "taxon_id": req.TaxonID})
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"name":     req.Name,
		"taxon_id": req.TaxonID,
	})
}

func (s *Server) updateSpecies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		NewName string `json:"new_name"`
		TaxonID int64  `json:"taxon_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.NewName = strings.TrimSpace(req.NewName)
	if req.NewName == "" {
		req.NewName = req.Name
	}
	if req.Name == "" || req.TaxonID <= 0 {
		s.writeError(w, http.StatusBadRequest, "name and a positive taxon_id are required")
		return
	}
	if strings.Contains(req.NewName, ",") {
		s.writeError(w, http.StatusBadRequest, "name must not contain a comma")
		return
	}

	old, err := s.Catalog.Update(req.Name, req.NewName, req.TaxonID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// Re-pointing at a different taxon carries the cache over to the new key.
	if old.TaxonID != req.TaxonID {
		if err := s.Store.Rename(old.TaxonID, req.TaxonID); err != nil {
			s.log.Error("failed to migrate species cache", err, logger.Fields{
				"old_taxon_id": old.TaxonID, "new_taxon_id": req.TaxonID,
			})
		}
	}

	s.log.Info("Species updated", logger.Fields{
		"name": req.NewName, "taxon_id": req.TaxonID, "previous_taxon_id": old.TaxonID,
	})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":     req.NewName,
		"taxon_id": req.TaxonID,
	})
}

func (s *Server) removeSpecies(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "name query parameter required")
		return
	}

	removed, err := s.Catalog.Remove(name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// The cache for a removed species is dead weight.
	if err := s.Store.Remove(removed.TaxonID); err != nil {
		s.log.Error("failed to drop species cache", err, logger.Fields{"taxon_id": removed.TaxonID})
	}

	s.log.Info("Species removed", logger.Fields{"name": removed.Name, "taxon_id": removed.TaxonID})
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":     removed.Name,
		"taxon_id": removed.TaxonID,
	})
}

// HandleUpdate runs an incremental update for every tracked species, or for
// one species when ?species= is given.
func (s *Server) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.runMutex.TryLock() {
		s.writeError(w, http.StatusConflict, "another run is already in progress")
		return
	}
	defer s.runMutex.Unlock()

	species, err := s.selectSpecies(r)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if len(species) == 0 {
		s.writeError(w, http.StatusBadRequest, "no species tracked")
		return
	}

	statuses := s.Engine.UpdateAll(r.Context(), species)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": statusPayload(statuses),
	})
}

// HandleRefresh discards the cache of one species and refetches it in full.
// The previous cache is restored if the refetch yields nothing.
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.runMutex.TryLock() {
		s.writeError(w, http.StatusConflict, "another run is already in progress")
		return
	}
	defer s.runMutex.Unlock()

	sp, ok := s.lookupSpeciesParam(w, r)
	if !ok {
		return
	}

	result, err := s.Engine.Refresh(r.Context(), sp.TaxonID)
	if errors.Is(err, syncer.ErrNoData) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"species": sp.Name,
			"state":   string(result.State),
			"message": "source returned no observations; previous cache restored",
		})
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Client went away mid-refresh; the engine already restored the cache.
		s.writeError(w, http.StatusServiceUnavailable, "refresh cancelled; previous cache restored")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"species": sp.Name,
		"state":   string(result.State),
		"new":     result.New,
		"total":   result.Total,
	})
}

// HandleGenerate renders and publishes a report: the consolidated overview by
// default, or a single species report when ?species= is given.
func (s *Server) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.runMutex.TryLock() {
		s.writeError(w, http.StatusConflict, "another run is already in progress")
		return
	}
	defer s.runMutex.Unlock()

	ctx := r.Context()
	now := s.Clock.Now()

	name := strings.TrimSpace(r.URL.Query().Get("species"))
	if name != "" {
		sp, found, err := s.Catalog.Lookup(name)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !found {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("species %q is not tracked", name))
			return
		}

		records, _, err := s.Engine.Ensure(ctx, sp.TaxonID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		files, err := s.Generator.SpeciesReport(sp, records, now)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		folder, err := s.Publisher.Publish(ctx, sp.Name, files, now)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"species": sp.Name,
			"report":  "/files/" + folder + "/" + storage.ReportFileName,
			"records": len(records),
		})
		return
	}

	species, err := s.Catalog.Load()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(species) == 0 {
		s.writeError(w, http.StatusBadRequest, "no species tracked")
		return
	}

	entries := make([]reports.ConsolidatedEntry, 0, len(species))
	for _, sp := range species {
		records, _, err := s.Engine.Ensure(ctx, sp.TaxonID)
		if err != nil {
			s.log.Error("failed to load records for consolidated report", err, logger.Fields{
				"species": sp.Name, "taxon_id": sp.TaxonID,
			})
			continue
		}
		entries = append(entries, reports.ConsolidatedEntry{Species: sp, Records: records})
	}

	files, err := s.Generator.ConsolidatedReport(entries, now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	folder, err := s.Publisher.Publish(ctx, "all-species", files, now)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":  "/files/" + folder + "/" + storage.ReportFileName,
		"species": len(entries),
	})
}

// HandleListReports lists recent reports.
func (s *Server) HandleListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
		if limit > 100 {
			limit = 100
		}
	}

	list, err := s.Storage.ListReports(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports": list,
		"count":   len(list),
	})
}

// HandleFileProxy serves published report files from storage.
func (s *Server) HandleFileProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filePath := strings.TrimPrefix(r.URL.Path, "/files/")
	if filePath == "" {
		http.Error(w, "File path required", http.StatusBadRequest)
		return
	}
	if strings.Contains(filePath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	data, err := s.Storage.GetFile(r.Context(), filePath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", storage.GetContentType(filePath))
	w.Write(data)
}

// HandleCachePurge removes every cached record set. The next update for each
// species is a cold start.
func (s *Server) HandleCachePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.runMutex.TryLock() {
		s.writeError(w, http.StatusConflict, "another run is already in progress")
		return
	}
	defer s.runMutex.Unlock()

	if err := s.Store.Purge(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("Observation cache purged")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

// selectSpecies resolves the ?species= filter, defaulting to the whole catalog.
func (s *Server) selectSpecies(r *http.Request) ([]catalog.Species, error) {
	name := strings.TrimSpace(r.URL.Query().Get("species"))
	if name == "" {
		return s.Catalog.Load()
	}
	sp, found, err := s.Catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("species %q is not tracked", name)
	}
	return []catalog.Species{sp}, nil
}

// lookupSpeciesParam resolves a required ?species= parameter, writing the
// error response itself when resolution fails.
func (s *Server) lookupSpeciesParam(w http.ResponseWriter, r *http.Request) (catalog.Species, bool) {
	name := strings.TrimSpace(r.URL.Query().Get("species"))
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "species query parameter required")
		return catalog.Species{}, false
	}
	sp, found, err := s.Catalog.Lookup(name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return catalog.Species{}, false
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("species %q is not tracked", name))
		return catalog.Species{}, false
	}
	return sp, true
}

// statusPayload flattens batch statuses for the JSON response.
func statusPayload(statuses []syncer.SpeciesStatus) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(statuses))
	for _, st := range statuses {
		entry := map[string]interface{}{
			"species":  st.Species.Name,
			"taxon_id": st.Species.TaxonID,
			"outcome":  st.Outcome(),
			"state":    string(st.Result.State),
			"new":      st.Result.New,
			"total":    st.Result.Total,
		}
		if st.Err != nil {
			entry["error"] = st.Err.Error()
		}
		out = append(out, entry)
	}
	return out
}
