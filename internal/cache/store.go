package cache

import (
	"fungiwatch/internal/models"
)

// Store persists per-taxon observation record sets. It is a flat
// taxon-id → record-list layer with no knowledge of merge semantics.
type Store interface {
	// Load returns the cached record set for a taxon. present distinguishes
	// "no cache" from "cache present but empty"; a corrupt cache is reported
	// as absent so callers fall back to a cold start.
	Load(taxonID int64) (records []models.Observation, present bool, err error)

	// Save persists the full record set for a taxon, overwriting any prior
	// content.
	Save(taxonID int64, records []models.Observation) error

	// Checkpoint moves the current record set aside so a destructive rewrite
	// can be undone. Commit discards the backup, Rollback reinstates the
	// pre-checkpoint state exactly (including absence).
	Checkpoint(taxonID int64) (Checkpoint, error)

	// Remove deletes the record set for a taxon, if any.
	Remove(taxonID int64) error

	// Rename moves a record set to a new taxon key. Used when a species
	// catalog entry is re-pointed at a different taxon identifier.
	Rename(oldID, newID int64) error

	// Purge removes every cached record set.
	Purge() error
}

// Checkpoint is a scoped backup of one taxon's record set.
type Checkpoint interface {
	Commit() error
	Rollback() error
}
