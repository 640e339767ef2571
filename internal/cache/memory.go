package cache

import (
	"sync"

	"fungiwatch/internal/models"
)

// MemStore is an in-memory Store used by tests and by mockup mode. It
// mirrors FileStore semantics, checkpoints included.
type MemStore struct {
	mu   sync.Mutex
	sets map[int64][]models.Observation
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sets: make(map[int64][]models.Observation)}
}

func (s *MemStore) Load(taxonID int64) ([]models.Observation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, present := s.sets[taxonID]
	if !present {
		return nil, false, nil
	}
	out := make([]models.Observation, len(records))
	copy(out, records)
	return out, true, nil
}

func (s *MemStore) Save(taxonID int64, records []models.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]models.Observation, len(records))
	copy(stored, records)
	s.sets[taxonID] = stored
	return nil
}

func (s *MemStore) Checkpoint(taxonID int64) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := &memCheckpoint{store: s, taxonID: taxonID}
	if records, present := s.sets[taxonID]; present {
		cp.hadSet = true
		cp.backup = make([]models.Observation, len(records))
		copy(cp.backup, records)
	}
	delete(s.sets, taxonID)
	return cp, nil
}

func (s *MemStore) Remove(taxonID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, taxonID)
	return nil
}

func (s *MemStore) Rename(oldID, newID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if records, present := s.sets[oldID]; present {
		s.sets[newID] = records
		delete(s.sets, oldID)
	}
	return nil
}

func (s *MemStore) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = make(map[int64][]models.Observation)
	return nil
}

type memCheckpoint struct {
	store   *MemStore
	taxonID int64
	backup  []models.Observation
	hadSet  bool
	done    bool
}

func (c *memCheckpoint) Commit() error {
	c.done = true
	return nil
}

func (c *memCheckpoint) Rollback() error {
	if c.done {
		return nil
	}
	c.done = true
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.hadSet {
		c.store.sets[c.taxonID] = c.backup
	} else {
		delete(c.store.sets, c.taxonID)
	}
	return nil
}
