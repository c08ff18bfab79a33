package port

import (
	"context"

	"github.com/bornholm/sectioncache/internal/core/model"
)

// SectionCacheStore holds the section cache entries of one fetched-results
// session. At most one entry exists per (object type, name) key.
type SectionCacheStore interface {
	// GetOrCreate returns the entry for the key, creating it with default
	// criteria when absent. New entries are listed last.
	GetOrCreate(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error)

	// Find returns ErrNotFound when no entry exists for the key.
	Find(ctx context.Context, name string, objectTypeName string) (*model.SectionCacheEntry, error)

	// Remove deletes the entry if present. Removing an absent entry is not
	// an error.
	Remove(ctx context.Context, name string, objectTypeName string) error

	// Reconcile removes every entry whose key is not in presentKeys and
	// returns the removed keys, in listing order.
	Reconcile(ctx context.Context, presentKeys []model.SectionKey) ([]model.SectionKey, error)

	// Save persists a new version of an existing entry (see
	// model.SectionCacheEntry.WithCriteria). Saving a removed entry returns
	// ErrNotFound.
	Save(ctx context.Context, entry *model.SectionCacheEntry) error

	// Reorder sets the display order: the given keys come first, in the given
	// order, followed by the remaining entries in their previous order.
	// Unknown keys are ignored.
	Reorder(ctx context.Context, keys []model.SectionKey) error

	// List returns the entries in display order.
	List(ctx context.Context) ([]*model.SectionCacheEntry, error)

	Count(ctx context.Context) (int64, error)

	// Transaction runs fn against a store bound to a single transaction.
	// Readers observe either none or all of its changes. A commit that cannot
	// be applied returns ErrTransactionConflict and is never retried.
	Transaction(ctx context.Context, fn func(ctx context.Context, store SectionCacheStore) error) error
}
