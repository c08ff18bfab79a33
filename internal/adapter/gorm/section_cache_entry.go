package gorm

import (
	"time"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

type SectionCacheEntry struct {
	ID string `gorm:"primaryKey;autoIncrement:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	CacheName      string `gorm:"not null;uniqueIndex:idx_section_cache_entries_key,priority:1"`
	ObjectTypeName string `gorm:"not null;uniqueIndex:idx_section_cache_entries_key,priority:2"`
	Name           string `gorm:"not null;uniqueIndex:idx_section_cache_entries_key,priority:3"`

	Position int64 `gorm:"not null;index"`

	PredicateData       []byte
	SortDescriptorsData []byte
	DistinctByData      []byte
}

func (r *SectionCacheEntry) Key() model.SectionKey {
	return model.NewSectionKey(r.Name, r.ObjectTypeName)
}

func toSectionCacheEntry(r *SectionCacheEntry) (*model.SectionCacheEntry, error) {
	criteria, err := model.DecodeCriteria(r.PredicateData, r.SortDescriptorsData, r.DistinctByData)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode criteria of section '%s' of type '%s'", r.Name, r.ObjectTypeName)
	}

	entry, err := model.RestoreSectionCacheEntry(r.Name, r.ObjectTypeName, criteria)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return entry, nil
}

func fromSectionCacheEntry(cacheName string, e *model.SectionCacheEntry) *SectionCacheEntry {
	criteria := e.Criteria()

	return &SectionCacheEntry{
		ID:                  xid.New().String(),
		CacheName:           cacheName,
		ObjectTypeName:      e.ObjectTypeName(),
		Name:                e.Name(),
		PredicateData:       criteria.PredicateData(),
		SortDescriptorsData: criteria.SortDescriptorsData(),
		DistinctByData:      criteria.DistinctByData(),
	}
}
