package model

import (
	"github.com/pkg/errors"
)

// SectionKey identifies a section within a cache. Sections are scoped by
// object type: the same name under two types denotes two sections.
type SectionKey struct {
	ObjectTypeName string
	Name           string
}

func NewSectionKey(name string, objectTypeName string) SectionKey {
	return SectionKey{ObjectTypeName: objectTypeName, Name: name}
}

func (k SectionKey) Validate() error {
	if err := ValidateName(k.Name); err != nil {
		return errors.Wrap(err, "section name")
	}

	if err := ValidateName(k.ObjectTypeName); err != nil {
		return errors.Wrap(err, "object type name")
	}

	return nil
}

func (k SectionKey) String() string {
	return k.ObjectTypeName + KeySeparator + k.Name
}

// SectionCacheEntry describes one section of a fetched result set: its name,
// the type of its objects and the criteria reproducing its query.
//
// Identity fields never change. Updating criteria produces a new version of
// the entry through WithCriteria.
type SectionCacheEntry struct {
	key      SectionKey
	criteria QueryCriteria
}

func NewSectionCacheEntry(name string, objectTypeName string) (*SectionCacheEntry, error) {
	return RestoreSectionCacheEntry(name, objectTypeName, QueryCriteria{})
}

// RestoreSectionCacheEntry rebuilds an entry with known criteria, typically
// when reloading it from persistence.
func RestoreSectionCacheEntry(name string, objectTypeName string, criteria QueryCriteria) (*SectionCacheEntry, error) {
	key := NewSectionKey(name, objectTypeName)
	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	return &SectionCacheEntry{
		key:      key,
		criteria: criteria,
	}, nil
}

func (e *SectionCacheEntry) Name() string {
	return e.key.Name
}

func (e *SectionCacheEntry) ObjectTypeName() string {
	return e.key.ObjectTypeName
}

func (e *SectionCacheEntry) Key() SectionKey {
	return e.key
}

func (e *SectionCacheEntry) Criteria() QueryCriteria {
	return e.criteria
}

// WithCriteria returns a new version of the entry with the same identity.
func (e *SectionCacheEntry) WithCriteria(criteria QueryCriteria) *SectionCacheEntry {
	return &SectionCacheEntry{
		key:      e.key,
		criteria: criteria,
	}
}

// SameSection reports whether both entries denote the same section, whatever
// their criteria.
func (e *SectionCacheEntry) SameSection(other *SectionCacheEntry) bool {
	if e == nil || other == nil {
		return e == other
	}

	return e.key == other.key
}

// IsStale reports whether the entry criteria differ from the expected ones.
func (e *SectionCacheEntry) IsStale(expected QueryCriteria) bool {
	return !e.criteria.Equal(expected)
}

// ToExecutableQuery rebuilds the query materializing the section.
func (e *SectionCacheEntry) ToExecutableQuery() *Query {
	return e.criteria.ToExecutableQuery(e.key.ObjectTypeName)
}
