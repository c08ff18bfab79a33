package service

import (
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strconv"

	"github.com/bornholm/go-x/slogx"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/bornholm/sectioncache/internal/metrics"
	"github.com/pkg/errors"
)

var keyPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type RefreshRequest struct {
	ObjectTypeName string
	// Criteria of the whole result set. Each section narrows its filter to
	// the objects sharing its key.
	Criteria model.QueryCriteria
	// Field of the objects holding the name of their section
	SectionKeyPath string
}

type Section struct {
	Entry   *model.SectionCacheEntry
	Objects []model.Object
}

type Partition struct {
	Sections []*Section
	Removed  []model.SectionKey
}

// Refresher recomputes the sections of a fetched result set and brings the
// section cache in line with them.
type Refresher struct {
	store   port.SectionCacheStore
	objects port.ObjectStore
}

// Refresh queries the objects matching the request filter, groups them by
// section key and applies the distinct and sort criteria within each section,
// the way Materialize will. Sections are ordered by their first object. The
// cache is then updated in a single store transaction: entries are created or given fresh criteria, display
// order follows the partition and sections of the same object type that
// vanished are removed. Entries of other object types are left untouched.
//
// A port.ErrTransactionConflict is returned as is. Replaying the cycle is up
// to the caller.
func (r *Refresher) Refresh(ctx context.Context, req RefreshRequest) (*Partition, error) {
	ctx = slogx.WithAttrs(ctx, slog.String("objectType", req.ObjectTypeName), slog.String("keyPath", req.SectionKeyPath))

	partition, err := r.refresh(ctx, req)
	if err != nil {
		status := metrics.StatusFailed
		if errors.Is(err, port.ErrTransactionConflict) {
			status = metrics.StatusConflict
		}

		metrics.Refreshes.WithLabelValues(status).Inc()

		slog.ErrorContext(ctx, "could not refresh sections", slogx.Error(err))

		return nil, errors.WithStack(err)
	}

	metrics.Refreshes.WithLabelValues(metrics.StatusSucceeded).Inc()
	metrics.ReconciledEntries.Add(float64(len(partition.Removed)))
	metrics.Entries.WithLabelValues(req.ObjectTypeName).Set(float64(len(partition.Sections)))

	slog.DebugContext(ctx, "sections refreshed", slog.Int("sections", len(partition.Sections)), slog.Int("removed", len(partition.Removed)))

	return partition, nil
}

func (r *Refresher) refresh(ctx context.Context, req RefreshRequest) (*Partition, error) {
	if err := model.ValidateName(req.ObjectTypeName); err != nil {
		return nil, errors.Wrap(err, "object type name")
	}

	if !keyPathPattern.MatchString(req.SectionKeyPath) {
		return nil, errors.Wrapf(model.ErrInvalidField, "section key path '%s' is not a field identifier", req.SectionKeyPath)
	}

	objects, err := r.objects.Objects(ctx, &model.Query{
		ObjectTypeName: req.ObjectTypeName,
		Filter:         req.Criteria.Predicate(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not query objects")
	}

	sections, err := r.partition(req, objects)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	keys := make([]model.SectionKey, 0, len(sections))
	for _, s := range sections {
		keys = append(keys, s.Entry.Key())
	}

	var removed []model.SectionKey

	err = r.store.Transaction(ctx, func(ctx context.Context, store port.SectionCacheStore) error {
		for _, s := range sections {
			expected := s.Entry.Criteria()

			entry, err := store.GetOrCreate(ctx, s.Entry.Name(), s.Entry.ObjectTypeName())
			if err != nil {
				return errors.WithStack(err)
			}

			if entry.IsStale(expected) {
				slog.DebugContext(ctx, "replacing section criteria", slog.String("section", entry.Name()))

				entry = entry.WithCriteria(expected)

				if err := store.Save(ctx, entry); err != nil {
					return errors.WithStack(err)
				}
			}

			s.Entry = entry
		}

		present, err := r.presentKeys(ctx, store, req.ObjectTypeName, keys)
		if err != nil {
			return errors.WithStack(err)
		}

		removed, err = store.Reconcile(ctx, present)
		if err != nil {
			return errors.WithStack(err)
		}

		if err := store.Reorder(ctx, keys); err != nil {
			return errors.WithStack(err)
		}

		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &Partition{
		Sections: sections,
		Removed:  removed,
	}, nil
}

// partition groups the objects by section name, in store order. Each section
// carries the entry it is expected to have, with criteria narrowed to its name,
// and the objects that criteria selects.
func (r *Refresher) partition(req RefreshRequest, objects []model.Object) ([]*Section, error) {
	sections := make([]*Section, 0)
	byName := make(map[string]*Section)

	for _, obj := range objects {
		value, exists := obj.Field(req.SectionKeyPath)
		if !exists {
			return nil, errors.Wrapf(model.ErrInvalidName, "object has no section key field '%s'", req.SectionKeyPath)
		}

		name, ok := value.(string)
		if !ok {
			return nil, errors.Wrapf(model.ErrInvalidName, "section key '%v' of type %T is not a string", value, value)
		}

		if section, exists := byName[name]; exists {
			section.Objects = append(section.Objects, obj)
			continue
		}

		criteria, err := sectionCriteria(req, name)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		entry, err := model.RestoreSectionCacheEntry(name, req.ObjectTypeName, criteria)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		section := &Section{
			Entry:   entry,
			Objects: []model.Object{obj},
		}

		byName[name] = section
		sections = append(sections, section)
	}

	query := &model.Query{
		ObjectTypeName: req.ObjectTypeName,
		Distinct:       req.Criteria.DistinctFields(),
		Sort:           req.Criteria.SortDescriptors(),
	}

	for _, section := range sections {
		objects, err := query.Apply(section.Objects)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		section.Objects = objects
	}

	slices.SortStableFunc(sections, func(a, b *Section) int {
		return query.Compare(a.Objects[0], b.Objects[0])
	})

	return sections, nil
}

func (r *Refresher) presentKeys(ctx context.Context, store port.SectionCacheStore, objectTypeName string, keys []model.SectionKey) ([]model.SectionKey, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	present := append(make([]model.SectionKey, 0, len(keys)+len(entries)), keys...)
	for _, e := range entries {
		if e.ObjectTypeName() != objectTypeName {
			present = append(present, e.Key())
		}
	}

	return present, nil
}

func sectionCriteria(req RefreshRequest, name string) (model.QueryCriteria, error) {
	narrow, err := model.NewPredicate(req.SectionKeyPath + " == " + strconv.Quote(name))
	if err != nil {
		return model.QueryCriteria{}, errors.WithStack(err)
	}

	predicate, err := req.Criteria.Predicate().And(narrow)
	if err != nil {
		return model.QueryCriteria{}, errors.WithStack(err)
	}

	return req.Criteria.WithPredicate(predicate), nil
}

// Materialize runs the query of a cached section against the object store.
func (r *Refresher) Materialize(ctx context.Context, entry *model.SectionCacheEntry) ([]model.Object, error) {
	objects, err := r.objects.Objects(ctx, entry.ToExecutableQuery())
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return objects, nil
}

func NewRefresher(store port.SectionCacheStore, objects port.ObjectStore) *Refresher {
	return &Refresher{
		store:   store,
		objects: objects,
	}
}
