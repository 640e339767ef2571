package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"fungiwatch/internal/logger"
	"fungiwatch/internal/models"
)

const backupSuffix = ".bak"

// FileStore keeps one JSON file per taxon under a base directory.
// Layout: <dir>/taxon_<id>.json, with a transient taxon_<id>.json.bak
// backup alive only between Checkpoint and Commit/Rollback.
type FileStore struct {
	dir string
	log *logger.Logger
}

// NewFileStore creates the base directory if needed and returns a store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileStore{
		dir: dir,
		log: logger.GetGlobalLogger().WithComponent("cache"),
	}, nil
}

func (s *FileStore) path(taxonID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("taxon_%d.json", taxonID))
}

// Load reads the cached record set. A missing or unreadable cache file is
// reported as absent, never as an error: the engine treats it as a cold start.
func (s *FileStore) Load(taxonID int64) ([]models.Observation, bool, error) {
	data, err := os.ReadFile(s.path(taxonID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache for taxon %d: %w", taxonID, err)
	}

	var records []models.Observation
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn("cache file corrupt, treating as absent", logger.Fields{
			"taxon_id": taxonID, "error": err.Error(),
		})
		return nil, false, nil
	}
	return records, true, nil
}

// Save overwrites the cache file with the full record set.
func (s *FileStore) Save(taxonID int64, records []models.Observation) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode cache for taxon %d: %w", taxonID, err)
	}
	if err := os.WriteFile(s.path(taxonID), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache for taxon %d: %w", taxonID, err)
	}
	return nil
}

// Checkpoint renames the cache file aside. If no cache exists yet the
// checkpoint still records that, so Rollback restores absence.
func (s *FileStore) Checkpoint(taxonID int64) (Checkpoint, error) {
	path := s.path(taxonID)
	err := os.Rename(path, path+backupSuffix)
	if os.IsNotExist(err) {
		return &fileCheckpoint{path: path, hadFile: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to back up cache for taxon %d: %w", taxonID, err)
	}
	return &fileCheckpoint{path: path, hadFile: true}, nil
}

// Remove deletes the cache file for a taxon; a missing file is not an error.
func (s *FileStore) Remove(taxonID int64) error {
	err := os.Remove(s.path(taxonID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache for taxon %d: %w", taxonID, err)
	}
	return nil
}

// Rename moves a record set to a new taxon key.
func (s *FileStore) Rename(oldID, newID int64) error {
	err := os.Rename(s.path(oldID), s.path(newID))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to rename cache %d -> %d: %w", oldID, newID, err)
	}
	return nil
}

// Purge removes every cache file, backups included.
func (s *FileStore) Purge() error {
	for _, pattern := range []string{"taxon_*.json", "taxon_*.json" + backupSuffix} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return err
		}
		for _, match := range matches {
			if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to purge %s: %w", match, err)
			}
		}
	}
	return nil
}

type fileCheckpoint struct {
	path    string
	hadFile bool
	done    bool
}

// Commit discards the backup; the rewritten cache becomes the truth.
func (c *fileCheckpoint) Commit() error {
	if c.done {
		return nil
	}
	c.done = true
	if !c.hadFile {
		return nil
	}
	err := os.Remove(c.path + backupSuffix)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Rollback reinstates the pre-checkpoint cache byte for byte, clobbering
// any partial rewrite. If no cache existed at checkpoint time, any file
// written since is removed so the taxon returns to the cold state.
func (c *fileCheckpoint) Rollback() error {
	if c.done {
		return nil
	}
	c.done = true
	if c.hadFile {
		return os.Rename(c.path+backupSuffix, c.path)
	}
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
