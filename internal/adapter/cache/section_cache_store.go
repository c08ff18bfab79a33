package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/bornholm/sectioncache/internal/metrics"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// SectionCacheStore serves entry lookups from an in-process LRU in front of
// another store. Listing and counting always hit the backend since they must
// reflect committed refresh cycles as a whole.
//
// Writes hold the mutex exclusively until the cache is invalidated, so a
// lookup never observes a committed write through a stale cached entry.
type SectionCacheStore struct {
	backend port.SectionCacheStore
	entries *MultiIndexCache[*CacheableSectionCacheEntry]
	group   singleflight.Group
	mutex   sync.RWMutex
}

type loadedEntry struct {
	entry      *model.SectionCacheEntry
	generation uint64
}

// Count implements [port.SectionCacheStore].
func (s *SectionCacheStore) Count(ctx context.Context) (int64, error) {
	return s.backend.Count(ctx)
}

// Find implements [port.SectionCacheStore].
func (s *SectionCacheStore) Find(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	cacheKey := getSectionCacheKey(key)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if cached, exists := s.entries.Get(cacheKey); exists {
		metrics.Lookups.WithLabelValues(metrics.LookupHit).Inc()
		return cached.SectionCacheEntry, nil
	}

	metrics.Lookups.WithLabelValues(metrics.LookupMiss).Inc()

	value, err, _ := s.group.Do(cacheKey, func() (any, error) {
		generation := s.entries.Generation()

		entry, err := s.backend.Find(ctx, name, objectTypeName)
		if err != nil {
			return nil, err
		}

		return &loadedEntry{entry: entry, generation: generation}, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	loaded := value.(*loadedEntry)

	s.entries.Add(NewCacheableSectionCacheEntry(loaded.entry), loaded.generation)

	return loaded.entry, nil
}

// GetOrCreate implements [port.SectionCacheStore].
func (s *SectionCacheStore) GetOrCreate(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if cached, exists := s.entries.Get(getSectionCacheKey(key)); exists {
		metrics.Lookups.WithLabelValues(metrics.LookupHit).Inc()
		return cached.SectionCacheEntry, nil
	}

	metrics.Lookups.WithLabelValues(metrics.LookupMiss).Inc()

	generation := s.entries.Generation()

	entry, err := s.backend.GetOrCreate(ctx, name, objectTypeName)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.entries.Add(NewCacheableSectionCacheEntry(entry), generation)

	return entry, nil
}

// List implements [port.SectionCacheStore].
func (s *SectionCacheStore) List(ctx context.Context) ([]*model.SectionCacheEntry, error) {
	return s.backend.List(ctx)
}

// Reconcile implements [port.SectionCacheStore].
func (s *SectionCacheStore) Reconcile(ctx context.Context, presentKeys []model.SectionKey) ([]model.SectionKey, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer s.entries.Purge()

	removed, err := s.backend.Reconcile(ctx, presentKeys)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return removed, nil
}

// Remove implements [port.SectionCacheStore].
func (s *SectionCacheStore) Remove(ctx context.Context, name string, objectTypeName string) error {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return errors.WithStack(err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer s.entries.Remove(getSectionCacheKey(key))

	if err := s.backend.Remove(ctx, name, objectTypeName); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Reorder implements [port.SectionCacheStore].
func (s *SectionCacheStore) Reorder(ctx context.Context, keys []model.SectionKey) error {
	return s.backend.Reorder(ctx, keys)
}

// Save implements [port.SectionCacheStore].
func (s *SectionCacheStore) Save(ctx context.Context, entry *model.SectionCacheEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer s.entries.Remove(getSectionCacheKey(entry.Key()))

	if err := s.backend.Save(ctx, entry); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Transaction implements [port.SectionCacheStore]. Operations inside the
// transaction bypass the cache, which is purged once it ends.
func (s *SectionCacheStore) Transaction(ctx context.Context, fn func(ctx context.Context, store port.SectionCacheStore) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	defer s.entries.Purge()

	if err := s.backend.Transaction(ctx, fn); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func NewSectionCacheStore(backend port.SectionCacheStore, size int, ttl time.Duration) *SectionCacheStore {
	return &SectionCacheStore{
		backend: backend,
		entries: NewMultiIndexCache[*CacheableSectionCacheEntry](size, ttl),
	}
}

var _ port.SectionCacheStore = &SectionCacheStore{}
