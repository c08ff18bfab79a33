package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/pkg/errors"
)

// SectionCacheStore keeps entries in an immutable snapshot swapped atomically
// on every commit: readers never lock and always see a complete snapshot.
type SectionCacheStore struct {
	current atomic.Pointer[snapshot]
	mutex   sync.Mutex
}

// Count implements port.SectionCacheStore.
func (s *SectionCacheStore) Count(ctx context.Context) (int64, error) {
	return s.current.Load().count(), nil
}

// Find implements port.SectionCacheStore.
func (s *SectionCacheStore) Find(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	entry, err := s.current.Load().find(model.NewSectionKey(name, objectTypeName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

// GetOrCreate implements port.SectionCacheStore.
func (s *SectionCacheStore) GetOrCreate(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)

	if entry, exists := s.current.Load().entries[key]; exists {
		return entry, nil
	}

	var entry *model.SectionCacheEntry

	err := s.update(func(snap *snapshot) error {
		e, err := snap.getOrCreate(key)
		if err != nil {
			return errors.WithStack(err)
		}

		entry = e

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

// List implements port.SectionCacheStore.
func (s *SectionCacheStore) List(ctx context.Context) ([]*model.SectionCacheEntry, error) {
	return s.current.Load().list(), nil
}

// Reconcile implements port.SectionCacheStore.
func (s *SectionCacheStore) Reconcile(ctx context.Context, presentKeys []model.SectionKey) ([]model.SectionKey, error) {
	var removed []model.SectionKey

	err := s.update(func(snap *snapshot) error {
		removed = snap.reconcile(presentKeys)
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return removed, nil
}

// Remove implements port.SectionCacheStore.
func (s *SectionCacheStore) Remove(ctx context.Context, name string, objectTypeName string) error {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if _, exists := s.current.Load().entries[key]; !exists {
		return nil
	}

	err := s.update(func(snap *snapshot) error {
		snap.remove(key)
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Reorder implements port.SectionCacheStore.
func (s *SectionCacheStore) Reorder(ctx context.Context, keys []model.SectionKey) error {
	err := s.update(func(snap *snapshot) error {
		snap.reorder(keys)
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Save implements port.SectionCacheStore.
func (s *SectionCacheStore) Save(ctx context.Context, entry *model.SectionCacheEntry) error {
	err := s.update(func(snap *snapshot) error {
		return errors.WithStack(snap.save(entry))
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Transaction implements port.SectionCacheStore.
//
// The transaction works on a private copy of the snapshot it started from.
// Commit fails with port.ErrTransactionConflict if another commit happened in
// the meantime.
func (s *SectionCacheStore) Transaction(ctx context.Context, fn func(ctx context.Context, store port.SectionCacheStore) error) error {
	base := s.current.Load()

	tx := &transaction{
		snapshot: base.clone(),
	}

	if err := fn(ctx, tx); err != nil {
		return errors.WithStack(err)
	}

	if !tx.dirty {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.current.Load() != base {
		return errors.Wrap(port.ErrTransactionConflict, "section cache changed during transaction")
	}

	s.current.Store(tx.snapshot)

	return nil
}

func (s *SectionCacheStore) update(fn func(snap *snapshot) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	next := s.current.Load().clone()

	if err := fn(next); err != nil {
		return errors.WithStack(err)
	}

	s.current.Store(next)

	return nil
}

func NewSectionCacheStore() *SectionCacheStore {
	store := &SectionCacheStore{}
	store.current.Store(newSnapshot())
	return store
}

var _ port.SectionCacheStore = &SectionCacheStore{}

type transaction struct {
	snapshot *snapshot
	dirty    bool
}

// Count implements port.SectionCacheStore.
func (t *transaction) Count(ctx context.Context) (int64, error) {
	return t.snapshot.count(), nil
}

// Find implements port.SectionCacheStore.
func (t *transaction) Find(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	entry, err := t.snapshot.find(model.NewSectionKey(name, objectTypeName))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

// GetOrCreate implements port.SectionCacheStore.
func (t *transaction) GetOrCreate(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)

	if entry, exists := t.snapshot.entries[key]; exists {
		return entry, nil
	}

	entry, err := t.snapshot.getOrCreate(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	t.dirty = true

	return entry, nil
}

// List implements port.SectionCacheStore.
func (t *transaction) List(ctx context.Context) ([]*model.SectionCacheEntry, error) {
	return t.snapshot.list(), nil
}

// Reconcile implements port.SectionCacheStore.
func (t *transaction) Reconcile(ctx context.Context, presentKeys []model.SectionKey) ([]model.SectionKey, error) {
	removed := t.snapshot.reconcile(presentKeys)
	if len(removed) > 0 {
		t.dirty = true
	}

	return removed, nil
}

// Remove implements port.SectionCacheStore.
func (t *transaction) Remove(ctx context.Context, name string, objectTypeName string) error {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if t.snapshot.remove(key) {
		t.dirty = true
	}

	return nil
}

// Reorder implements port.SectionCacheStore.
func (t *transaction) Reorder(ctx context.Context, keys []model.SectionKey) error {
	t.snapshot.reorder(keys)
	t.dirty = true
	return nil
}

// Save implements port.SectionCacheStore.
func (t *transaction) Save(ctx context.Context, entry *model.SectionCacheEntry) error {
	if err := t.snapshot.save(entry); err != nil {
		return errors.WithStack(err)
	}

	t.dirty = true

	return nil
}

// Transaction implements port.SectionCacheStore. Nested transactions join
// the enclosing one.
func (t *transaction) Transaction(ctx context.Context, fn func(ctx context.Context, store port.SectionCacheStore) error) error {
	if err := fn(ctx, t); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

var _ port.SectionCacheStore = &transaction{}

type snapshot struct {
	entries map[model.SectionKey]*model.SectionCacheEntry
	order   []model.SectionKey
}

func newSnapshot() *snapshot {
	return &snapshot{
		entries: make(map[model.SectionKey]*model.SectionCacheEntry),
	}
}

func (s *snapshot) clone() *snapshot {
	entries := make(map[model.SectionKey]*model.SectionCacheEntry, len(s.entries))
	for k, e := range s.entries {
		entries[k] = e
	}

	return &snapshot{
		entries: entries,
		order:   slices.Clone(s.order),
	}
}

func (s *snapshot) count() int64 {
	return int64(len(s.order))
}

func (s *snapshot) find(key model.SectionKey) (*model.SectionCacheEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	entry, exists := s.entries[key]
	if !exists {
		return nil, errors.WithStack(port.ErrNotFound)
	}

	return entry, nil
}

func (s *snapshot) getOrCreate(key model.SectionKey) (*model.SectionCacheEntry, error) {
	if entry, exists := s.entries[key]; exists {
		return entry, nil
	}

	entry, err := model.NewSectionCacheEntry(key.Name, key.ObjectTypeName)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s.entries[key] = entry
	s.order = append(s.order, key)

	return entry, nil
}

func (s *snapshot) save(entry *model.SectionCacheEntry) error {
	key := entry.Key()

	if _, exists := s.entries[key]; !exists {
		return errors.Wrapf(port.ErrNotFound, "section '%s' of type '%s'", key.Name, key.ObjectTypeName)
	}

	s.entries[key] = entry

	return nil
}

func (s *snapshot) remove(key model.SectionKey) bool {
	if _, exists := s.entries[key]; !exists {
		return false
	}

	delete(s.entries, key)
	s.order = slices.DeleteFunc(s.order, func(k model.SectionKey) bool { return k == key })

	return true
}

func (s *snapshot) reconcile(presentKeys []model.SectionKey) []model.SectionKey {
	present := make(map[model.SectionKey]struct{}, len(presentKeys))
	for _, k := range presentKeys {
		present[k] = struct{}{}
	}

	var removed []model.SectionKey

	s.order = slices.DeleteFunc(s.order, func(k model.SectionKey) bool {
		if _, exists := present[k]; exists {
			return false
		}

		delete(s.entries, k)
		removed = append(removed, k)

		return true
	})

	return removed
}

func (s *snapshot) reorder(keys []model.SectionKey) {
	order := make([]model.SectionKey, 0, len(s.order))
	placed := make(map[model.SectionKey]struct{}, len(keys))

	for _, k := range keys {
		if _, exists := s.entries[k]; !exists {
			continue
		}

		if _, exists := placed[k]; exists {
			continue
		}

		placed[k] = struct{}{}
		order = append(order, k)
	}

	for _, k := range s.order {
		if _, exists := placed[k]; !exists {
			order = append(order, k)
		}
	}

	s.order = order
}

func (s *snapshot) list() []*model.SectionCacheEntry {
	entries := make([]*model.SectionCacheEntry, 0, len(s.order))
	for _, k := range s.order {
		entries = append(entries, s.entries[k])
	}

	return entries
}
