package gorm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/bornholm/sectioncache/internal/core/port/testsuite"
	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDatabase(t *testing.T, path string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(gormlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	internalDB, err := db.DB()
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	internalDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		if err := internalDB.Close(); err != nil {
			t.Logf("could not close database: %+v", errors.WithStack(err))
		}
	})

	return db
}

func TestSectionCacheStore(t *testing.T) {
	testsuite.TestSectionCacheStore(t, func(t *testing.T) (port.SectionCacheStore, error) {
		db := openTestDatabase(t, filepath.Join(t.TempDir(), "cache.sqlite"))
		return NewSectionCacheStore(db, "test"), nil
	})
}

func TestSectionCacheStoreReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.sqlite")

	predicate, err := model.NewPredicate(`status == "active" && priority > 2`)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	criteria, err := model.NewQueryCriteria(predicate, []model.SortDescriptor{model.Descending("dueDate")}, []string{"title"})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	func() {
		db := openTestDatabase(t, path)
		store := NewSectionCacheStore(db, "tasks")

		for _, name := range []string{"Active", "Done"} {
			entry, err := store.GetOrCreate(ctx, name, "Task")
			if err != nil {
				t.Fatalf("%+v", errors.WithStack(err))
			}

			if name == "Active" {
				if err := store.Save(ctx, entry.WithCriteria(criteria)); err != nil {
					t.Fatalf("%+v", errors.WithStack(err))
				}
			}
		}

		internalDB, err := db.DB()
		if err != nil {
			t.Fatalf("%+v", errors.WithStack(err))
		}

		if err := internalDB.Close(); err != nil {
			t.Fatalf("%+v", errors.WithStack(err))
		}
	}()

	db := openTestDatabase(t, path)
	store := NewSectionCacheStore(db, "tasks")

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := 2, len(entries); e != g {
		t.Fatalf("len(entries): expected %d, got %d", e, g)
	}

	if e, g := "Active", entries[0].Name(); e != g {
		t.Errorf("entries[0].Name(): expected '%s', got '%s'", e, g)
	}

	if !entries[0].Criteria().Equal(criteria) {
		t.Errorf("entries[0].Criteria(): expected %s, got %s", criteria, entries[0].Criteria())
	}

	if !entries[1].Criteria().IsZero() {
		t.Errorf("entries[1].Criteria(): expected default criteria, got %s", entries[1].Criteria())
	}
}

func TestSectionCacheStoreCacheNameScope(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t, filepath.Join(t.TempDir(), "cache.sqlite"))

	tasks := NewSectionCacheStore(db, "tasks")
	archive := NewSectionCacheStore(db, "archive")

	if _, err := tasks.GetOrCreate(ctx, "Active", "Task"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := archive.Find(ctx, "Active", "Task"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("archive.Find(): expected ErrNotFound, got %v", err)
	}

	if _, err := archive.GetOrCreate(ctx, "Active", "Task"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := archive.Reconcile(ctx, nil); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	count, err := tasks.Count(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("tasks.Count(): expected %d, got %d", e, g)
	}
}

func TestSectionCacheStoreCorruptCriteria(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t, filepath.Join(t.TempDir(), "cache.sqlite"))
	store := NewSectionCacheStore(db, "tasks")

	if _, err := store.GetOrCreate(ctx, "Active", "Task"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	err := db.Model(&SectionCacheEntry{}).
		Where("cache_name = ? AND name = ?", "tasks", "Active").
		Update("sort_descriptors_data", []byte{1, 1, 7, 'd', 'u', 'e', 'D', 'a', 't', 'e', 9}).Error
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := store.Find(ctx, "Active", "Task"); !errors.Is(err, model.ErrCorruptEncoding) {
		t.Errorf("store.Find(): expected ErrCorruptEncoding, got %v", err)
	}

	entry, err := store.GetOrCreate(ctx, "Active", "Task")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if !entry.Criteria().IsZero() {
		t.Errorf("entry.Criteria(): expected default criteria, got %s", entry.Criteria())
	}

	if err := store.Save(ctx, entry); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if _, err := store.Find(ctx, "Active", "Task"); err != nil {
		t.Errorf("store.Find() after save: expected entry, got %+v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(1), count; e != g {
		t.Errorf("store.Count(): expected %d, got %d", e, g)
	}
}
