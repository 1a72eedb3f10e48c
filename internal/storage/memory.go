package storage

import (
	"context"
	"sync"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// MemoryStore keeps records in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.JobRecord
	order   []string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*domain.JobRecord)}
}

// Upsert inserts or overwrites the record with rec.JobID
func (s *MemoryStore) Upsert(ctx context.Context, rec *domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.JobID]
	if !ok {
		s.order = append(s.order, rec.JobID)
	}
	s.records[rec.JobID] = mergeForUpsert(existing, rec)
	return nil
}

// FindByID returns a copy of the record matching jobID or its numeric alias
func (s *MemoryStore) FindByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.lookup(jobID)
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return s.records[key].Clone(), nil
}

// FindAll returns copies of all records in insertion order
func (s *MemoryStore) FindAll(ctx context.Context) ([]*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.JobRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out, nil
}

// Delete removes the record matching jobID
func (s *MemoryStore) Delete(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.lookup(jobID)
	if !ok {
		return false, nil
	}
	delete(s.records, key)
	for i, id := range s.order {
		if id == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// UpdateFields applies upd under the write lock and returns the new state
func (s *MemoryStore) UpdateFields(ctx context.Context, jobID string, upd domain.FieldUpdate) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.lookup(jobID)
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	rec := s.records[key]
	applyUpdate(rec, upd)
	return rec.Clone(), nil
}

// Close is a no-op
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// lookup must be called with the lock held. The exact id wins over its alias.
func (s *MemoryStore) lookup(jobID string) (string, bool) {
	aliases, _ := idAliases(jobID)
	for _, a := range aliases {
		if _, ok := s.records[a]; ok {
			return a, true
		}
	}
	return "", false
}
