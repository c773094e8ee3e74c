package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/carbonintel/internal/model"
)

// CachedStore fronts another store with an in-memory read-through cache.
// Scans always go to the backing store.
type CachedStore struct {
	next  Store
	cache *gocache.Cache
}

// NewCachedStore wraps next with a cache whose entries live for ttl
func NewCachedStore(next Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get serves from memory first and promotes backing-store hits
func (s *CachedStore) Get(ctx context.Context, id string) (model.Record, error) {
	if v, found := s.cache.Get(id); found {
		return v.(model.Record).Clone(), nil
	}

	rec, err := s.next.Get(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	s.cache.SetDefault(id, rec.Clone())
	return rec, nil
}

// Put writes through to the backing store, then refreshes the cache
func (s *CachedStore) Put(ctx context.Context, rec model.Record) error {
	if err := s.next.Put(ctx, rec); err != nil {
		s.cache.Delete(rec.ID)
		return err
	}
	s.cache.SetDefault(rec.ID, rec.Clone())
	return nil
}

// Scan delegates to the backing store
func (s *CachedStore) Scan(ctx context.Context, pred func(model.Record) bool) ([]model.Record, error) {
	return s.next.Scan(ctx, pred)
}

// ScanFilter delegates to the backing store
func (s *CachedStore) ScanFilter(ctx context.Context, f Filter, pred func(model.Record) bool) ([]model.Record, error) {
	return Find(ctx, s.next, f, pred)
}

// Close flushes the cache and closes the backing store
func (s *CachedStore) Close() error {
	s.cache.Flush()
	return Close(s.next)
}
