package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ppiankov/carbonintel/internal/model"
)

// MemoryStore keeps records in a map. Used for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.Record
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.Record)}
}

// Get returns a copy of the record with the given id
func (s *MemoryStore) Get(ctx context.Context, id string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// Put stores a copy of rec, replacing any record with the same id
func (s *MemoryStore) Put(ctx context.Context, rec model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Scan returns copies of the matching records ordered by id
func (s *MemoryStore) Scan(ctx context.Context, pred func(model.Record) bool) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.Record
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rec := s.records[id]; pred(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
