package syncer

import (
	"context"
	"errors"
	"time"

	"fungiwatch/internal/cache"
	"fungiwatch/internal/catalog"
	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
	"fungiwatch/internal/observability"
)

// ErrNoData signals that a full fetch returned zero records. It is a
// non-fatal outcome, always distinguishable from a real failure.
var ErrNoData = errors.New("source returned no observations")

// State of one taxon's cache as seen by the engine.
type State string

const (
	StateCold       State = "COLD"       // no cache exists
	StateWarm       State = "WARM"       // cache present, assumed current
	StateRefreshing State = "REFRESHING" // fetch in flight
	StateMerged     State = "MERGED"     // new data folded in
	StateRestored   State = "RESTORED"   // refresh failed, prior cache reinstated
)

// Fetcher is the slice of the paged fetcher the engine depends on.
// Implementations return whatever accumulated, even on cancellation.
type Fetcher interface {
	FetchAll(ctx context.Context, taxonID int64) []models.Observation
	FetchSince(ctx context.Context, taxonID int64, since string) []models.Observation
}

// Engine orchestrates the paged fetcher and the cache store: cold-start
// loads, forced refreshes with rollback, and incremental deduplicating
// updates. It is the only component that touches both.
type Engine struct {
	store   cache.Store
	fetcher Fetcher
	metrics *observability.Metrics
	log     *logger.Logger
}

// New wires an engine onto an explicit store handle and fetcher.
func New(store cache.Store, fetcher Fetcher, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:   store,
		fetcher: fetcher,
		metrics: metrics,
		log:     logger.GetGlobalLogger().WithComponent("syncer"),
	}
}

// UpdateResult describes the outcome of one per-taxon operation.
type UpdateResult struct {
	State       State
	New         int
	Total       int
	GradeCounts map[string]int // quality grades of the newly added records
}

// Ensure returns the record set for a taxon: the cached set when one exists,
// otherwise a full fetch persisted as the new cache. A fetch that yields
// nothing leaves the taxon cold and returns an empty set without error.
func (e *Engine) Ensure(ctx context.Context, taxonID int64) ([]models.Observation, State, error) {
	records, present, err := e.store.Load(taxonID)
	if err != nil {
		return nil, StateCold, err
	}
	if present {
		return records, StateWarm, nil
	}

	fetched := e.fetcher.FetchAll(ctx, taxonID)
	if len(fetched) == 0 {
		e.log.Info("no observations for taxon", logger.Fields{"taxon_id": taxonID})
		return nil, StateCold, nil
	}
	if err := e.store.Save(taxonID, fetched); err != nil {
		return nil, StateCold, err
	}
	e.log.Info("cold start populated cache", logger.Fields{
		"taxon_id": taxonID, "records": len(fetched),
	})
	return fetched, StateWarm, nil
}

// Refresh discards the cached set and refetches it in full. The previous
// cache is moved aside first and reinstated on every failure path: an empty
// fetch, a save error, or a cancelled fetch. Cancellation restores the prior
// cache even when partial results accumulated before the cut, since a partial
// set must never replace a complete one.
func (e *Engine) Refresh(ctx context.Context, taxonID int64) (UpdateResult, error) {
	cp, err := e.store.Checkpoint(taxonID)
	if err != nil {
		return UpdateResult{State: StateWarm}, err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := cp.Rollback(); rbErr != nil {
			e.log.Error("failed to restore cache backup", rbErr, logger.Fields{"taxon_id": taxonID})
		}
	}()

	e.log.Info("forced refresh started", logger.Fields{"taxon_id": taxonID, "state": string(StateRefreshing)})
	fetched := e.fetcher.FetchAll(ctx, taxonID)
	if ctx.Err() != nil {
		// The fetch was cut short; whatever accumulated is incomplete.
		if e.metrics != nil {
			e.metrics.RefreshRollbacks.Inc()
		}
		e.log.Warn("refresh cancelled, restoring previous cache", logger.Fields{
			"taxon_id": taxonID, "partial_records": len(fetched),
		})
		return UpdateResult{State: StateRestored}, ctx.Err()
	}
	if len(fetched) == 0 {
		if e.metrics != nil {
			e.metrics.RefreshRollbacks.Inc()
		}
		return UpdateResult{State: StateRestored}, ErrNoData
	}

	if err := e.store.Save(taxonID, fetched); err != nil {
		if e.metrics != nil {
			e.metrics.RefreshRollbacks.Inc()
		}
		return UpdateResult{State: StateRestored}, err
	}

	if err := cp.Commit(); err != nil {
		e.log.Error("failed to discard cache backup", err, logger.Fields{"taxon_id": taxonID})
	}
	committed = true

	return UpdateResult{
		State:       StateMerged,
		New:         len(fetched),
		Total:       len(fetched),
		GradeCounts: countGrades(fetched),
	}, nil
}

// Update performs an incremental fetch-and-merge: fetch records observed on
// or after the latest cached date, discard ids already present, append the
// survivors, and persist the merged set. Repeating an update with no new
// remote data is a no-op.
func (e *Engine) Update(ctx context.Context, taxonID int64) (UpdateResult, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.UpdateDuration.Observe(time.Since(start).Seconds())
		}
	}()

	cached, present, err := e.store.Load(taxonID)
	if err != nil {
		return UpdateResult{}, err
	}
	if !present {
		records, state, err := e.Ensure(ctx, taxonID)
		if err != nil {
			return UpdateResult{State: StateCold}, err
		}
		return UpdateResult{
			State:       state,
			New:         len(records),
			Total:       len(records),
			GradeCounts: countGrades(records),
		}, nil
	}

	since := models.LatestObservedOn(cached)
	fetched := e.fetcher.FetchSince(ctx, taxonID, since)

	merged, added := Merge(cached, fetched)
	if len(added) == 0 {
		return UpdateResult{State: StateWarm, Total: len(cached)}, nil
	}

	if err := e.store.Save(taxonID, merged); err != nil {
		return UpdateResult{State: StateWarm, Total: len(cached)}, err
	}

	if e.metrics != nil {
		e.metrics.RecordsMerged.Add(float64(len(added)))
	}
	e.log.Info("merged new observations", logger.Fields{
		"taxon_id": taxonID, "new": len(added), "total": len(merged), "since": since,
	})

	return UpdateResult{
		State:       StateMerged,
		New:         len(added),
		Total:       len(merged),
		GradeCounts: countGrades(added),
	}, nil
}

// Merge folds fetched records into the cached set, discarding any fetched
// record whose id is already present. The final set depends only on which
// ids have ever been fetched, not on batch order or size.
func Merge(cached, fetched []models.Observation) (merged []models.Observation, added []models.Observation) {
	seen := make(map[int64]struct{}, len(cached))
	for _, rec := range cached {
		seen[rec.ID] = struct{}{}
	}

	merged = cached
	for _, rec := range fetched {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		merged = append(merged, rec)
		added = append(added, rec)
	}
	return merged, added
}

// SpeciesStatus reports the per-species outcome of a batch update. Err is
// set only for real failures; "no new data" is a success with New == 0.
type SpeciesStatus struct {
	Species catalog.Species
	Result  UpdateResult
	Err     error
}

// UpdateAll runs an incremental update for every tracked species, one at a
// time. A failure for one species never aborts the rest of the batch.
func (e *Engine) UpdateAll(ctx context.Context, species []catalog.Species) []SpeciesStatus {
	statuses := make([]SpeciesStatus, 0, len(species))

	for _, sp := range species {
		if ctx.Err() != nil {
			break
		}
		result, err := e.Update(ctx, sp.TaxonID)

		status := SpeciesStatus{Species: sp, Result: result, Err: err}
		statuses = append(statuses, status)

		if e.metrics != nil {
			e.metrics.SpeciesUpdated.WithLabelValues(status.Outcome()).Inc()
		}
		if err != nil {
			e.log.Error("species update failed", err, logger.Fields{
				"species": sp.Name, "taxon_id": sp.TaxonID,
			})
		}
	}

	return statuses
}

// Outcome classifies a status for reporting: updated, unchanged, or error.
func (s SpeciesStatus) Outcome() string {
	switch {
	case s.Err != nil:
		return "error"
	case s.Result.New > 0:
		return "updated"
	default:
		return "unchanged"
	}
}

func countGrades(records []models.Observation) map[string]int {
	if len(records) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.QualityGrade]++
	}
	return counts
}
