package gorm

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/bornholm/go-x/slogx"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/ncruces/go-sqlite3"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SectionCacheStore persists the entries of one named cache as rows of the
// section_cache_entries table. Several caches can share a database.
type SectionCacheStore struct {
	cacheName     string
	getDatabase   func(ctx context.Context) (*gorm.DB, error)
	inTransaction bool
}

// Count implements port.SectionCacheStore.
func (s *SectionCacheStore) Count(ctx context.Context) (int64, error) {
	db, err := s.getDatabase(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	var total int64

	if err := db.Model(&SectionCacheEntry{}).Where("cache_name = ?", s.cacheName).Count(&total).Error; err != nil {
		return 0, translateError(err)
	}

	return total, nil
}

// Find implements port.SectionCacheStore.
func (s *SectionCacheStore) Find(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	db, err := s.getDatabase(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	record, err := s.findRecord(db, key)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	entry, err := toSectionCacheEntry(record)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

// GetOrCreate implements port.SectionCacheStore.
//
// An existing row whose criteria cannot be decoded keeps its identity: the
// entry is returned with default criteria for the caller to save fresh ones.
func (s *SectionCacheStore) GetOrCreate(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error) {
	key := model.NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	var entry *model.SectionCacheEntry

	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		record, err := s.findRecord(db, key)
		if err != nil && !errors.Is(err, port.ErrNotFound) {
			return errors.WithStack(err)
		}

		if err == nil {
			entry, err = toSectionCacheEntry(record)
			if err == nil {
				return nil
			}

			if !errors.Is(err, model.ErrCorruptEncoding) {
				return errors.WithStack(err)
			}

			slog.WarnContext(ctx, "discarding undecodable section criteria", slog.String("cache", s.cacheName), slog.String("objectType", key.ObjectTypeName), slog.String("section", key.Name), slogx.Error(err))

			entry, err = model.NewSectionCacheEntry(key.Name, key.ObjectTypeName)
			if err != nil {
				return errors.WithStack(err)
			}

			return nil
		}

		entry, err = model.NewSectionCacheEntry(key.Name, key.ObjectTypeName)
		if err != nil {
			return errors.WithStack(err)
		}

		position, err := s.nextPosition(db)
		if err != nil {
			return errors.WithStack(err)
		}

		record = fromSectionCacheEntry(s.cacheName, entry)
		record.Position = position

		if err := db.Create(record).Error; err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

// List implements port.SectionCacheStore.
func (s *SectionCacheStore) List(ctx context.Context) ([]*model.SectionCacheEntry, error) {
	db, err := s.getDatabase(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	records, err := s.listRecords(db)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	entries := make([]*model.SectionCacheEntry, 0, len(records))
	for _, r := range records {
		entry, err := toSectionCacheEntry(r)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Reconcile implements port.SectionCacheStore.
func (s *SectionCacheStore) Reconcile(ctx context.Context, presentKeys []model.SectionKey) ([]model.SectionKey, error) {
	present := make(map[model.SectionKey]struct{}, len(presentKeys))
	for _, k := range presentKeys {
		present[k] = struct{}{}
	}

	var removed []model.SectionKey

	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		records, err := s.listRecords(db.Select("id", "object_type_name", "name", "position"))
		if err != nil {
			return errors.WithStack(err)
		}

		staleIDs := make([]string, 0)
		for _, r := range records {
			if _, exists := present[r.Key()]; exists {
				continue
			}

			staleIDs = append(staleIDs, r.ID)
			removed = append(removed, r.Key())
		}

		if len(staleIDs) == 0 {
			return nil
		}

		if err := db.Where("id IN ?", staleIDs).Delete(&SectionCacheEntry{}).Error; err != nil {
			return errors.WithStack(err)
		}

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

	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		err := db.Where("cache_name = ? AND object_type_name = ? AND name = ?", s.cacheName, key.ObjectTypeName, key.Name).
			Delete(&SectionCacheEntry{}).Error
		if err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Reorder implements port.SectionCacheStore.
func (s *SectionCacheStore) Reorder(ctx context.Context, keys []model.SectionKey) error {
	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		records, err := s.listRecords(db.Select("id", "object_type_name", "name", "position"))
		if err != nil {
			return errors.WithStack(err)
		}

		byKey := make(map[model.SectionKey]*SectionCacheEntry, len(records))
		for _, r := range records {
			byKey[r.Key()] = r
		}

		ordered := make([]*SectionCacheEntry, 0, len(records))
		placed := make(map[string]struct{}, len(keys))

		for _, k := range keys {
			r, exists := byKey[k]
			if !exists {
				continue
			}

			if _, exists := placed[r.ID]; exists {
				continue
			}

			placed[r.ID] = struct{}{}
			ordered = append(ordered, r)
		}

		for _, r := range records {
			if _, exists := placed[r.ID]; !exists {
				ordered = append(ordered, r)
			}
		}

		for i, r := range ordered {
			if r.Position == int64(i) {
				continue
			}

			if err := db.Model(&SectionCacheEntry{}).Where("id = ?", r.ID).Update("position", i).Error; err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Save implements port.SectionCacheStore.
func (s *SectionCacheStore) Save(ctx context.Context, entry *model.SectionCacheEntry) error {
	key := entry.Key()
	criteria := entry.Criteria()

	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		res := db.Model(&SectionCacheEntry{}).
			Where("cache_name = ? AND object_type_name = ? AND name = ?", s.cacheName, key.ObjectTypeName, key.Name).
			Updates(map[string]any{
				"predicate_data":        criteria.PredicateData(),
				"sort_descriptors_data": criteria.SortDescriptorsData(),
				"distinct_by_data":      criteria.DistinctByData(),
			})
		if res.Error != nil {
			return errors.WithStack(res.Error)
		}

		if res.RowsAffected == 0 {
			return errors.Wrapf(port.ErrNotFound, "section '%s' of type '%s'", key.Name, key.ObjectTypeName)
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Transaction implements port.SectionCacheStore. Nested transactions join
// the enclosing one.
func (s *SectionCacheStore) Transaction(ctx context.Context, fn func(ctx context.Context, store port.SectionCacheStore) error) error {
	err := s.withTransaction(ctx, func(ctx context.Context, db *gorm.DB) error {
		tx := &SectionCacheStore{
			cacheName: s.cacheName,
			getDatabase: func(ctx context.Context) (*gorm.DB, error) {
				return db, nil
			},
			inTransaction: true,
		}

		if err := fn(ctx, tx); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (s *SectionCacheStore) findRecord(db *gorm.DB, key model.SectionKey) (*SectionCacheEntry, error) {
	var record SectionCacheEntry

	err := db.Where("cache_name = ? AND object_type_name = ? AND name = ?", s.cacheName, key.ObjectTypeName, key.Name).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(port.ErrNotFound)
		}

		return nil, translateError(err)
	}

	return &record, nil
}

func (s *SectionCacheStore) listRecords(db *gorm.DB) ([]*SectionCacheEntry, error) {
	var records []*SectionCacheEntry

	if err := db.Where("cache_name = ?", s.cacheName).Order("position, id").Find(&records).Error; err != nil {
		return nil, translateError(err)
	}

	return records, nil
}

func (s *SectionCacheStore) nextPosition(db *gorm.DB) (int64, error) {
	var position sql.NullInt64

	err := db.Model(&SectionCacheEntry{}).
		Where("cache_name = ?", s.cacheName).
		Select("MAX(position)").
		Scan(&position).Error
	if err != nil {
		return 0, translateError(err)
	}

	if !position.Valid {
		return 0, nil
	}

	return position.Int64 + 1, nil
}

func (s *SectionCacheStore) withTransaction(ctx context.Context, fn func(ctx context.Context, db *gorm.DB) error) error {
	db, err := s.getDatabase(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if s.inTransaction {
		return translateError(fn(ctx, db))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := fn(ctx, tx); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return translateError(err)
	}

	return nil
}

// translateError reports lock contention and concurrent key creation as
// transaction conflicts. They are not retried here: the caller decides
// whether to replay its whole refresh cycle.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.BUSY, sqlite3.LOCKED, sqlite3.CONSTRAINT:
			return errors.Wrapf(port.ErrTransactionConflict, "%s", sqliteErr.Error())
		}
	}

	return errors.WithStack(err)
}

func NewSectionCacheStore(db *gorm.DB, cacheName string) *SectionCacheStore {
	return &SectionCacheStore{
		cacheName:   cacheName,
		getDatabase: createGetDatabase(db, &SectionCacheEntry{}),
	}
}

var _ port.SectionCacheStore = &SectionCacheStore{}
