package testsuite

import (
	"context"
	"testing"

	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

func TestSectionCacheStore(t *testing.T, factory func(t *testing.T) (port.SectionCacheStore, error)) {
	type testCase struct {
		Name string
		Run  func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error
	}

	var testCases []testCase = []testCase{
		{
			Name: "GetOrCreateDefault",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				entry, err := store.GetOrCreate(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := "Active", entry.Name(); e != g {
					t.Errorf("entry.Name(): expected '%s', got '%s'", e, g)
				}

				if e, g := "Task", entry.ObjectTypeName(); e != g {
					t.Errorf("entry.ObjectTypeName(): expected '%s', got '%s'", e, g)
				}

				if !entry.Criteria().IsZero() {
					t.Errorf("entry.Criteria(): expected default criteria, got %s", entry.Criteria())
				}

				again, err := store.GetOrCreate(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				if !again.SameSection(entry) {
					t.Errorf("expected second GetOrCreate to return the same section, got %s", spew.Sdump(again))
				}

				return nil
			},
		},
		{
			Name: "Uniqueness",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				keys := []model.SectionKey{
					model.NewSectionKey("Active", "Task"),
					model.NewSectionKey("Done", "Task"),
					model.NewSectionKey("Active", "Task"),
					model.NewSectionKey("Active", "Project"),
					model.NewSectionKey("Done", "Task"),
					model.NewSectionKey("Active", "Task"),
				}

				for _, k := range keys {
					entry, err := store.GetOrCreate(ctx, k.Name, k.ObjectTypeName)
					if err != nil {
						return errors.WithStack(err)
					}

					if e, g := k, entry.Key(); e != g {
						t.Errorf("entry.Key(): expected %v, got %v", e, g)
					}
				}

				count, err := store.Count(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := int64(3), count; e != g {
					t.Errorf("store.Count(): expected %d, got %d", e, g)
				}

				entries, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries,
					model.NewSectionKey("Active", "Task"),
					model.NewSectionKey("Done", "Task"),
					model.NewSectionKey("Active", "Project"),
				)

				return nil
			},
		},
		{
			Name: "InvalidName",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				if _, err := store.GetOrCreate(ctx, "", "Task"); !errors.Is(err, model.ErrInvalidName) {
					t.Errorf("GetOrCreate with empty name: expected ErrInvalidName, got %v", err)
				}

				if _, err := store.GetOrCreate(ctx, "Active", ""); !errors.Is(err, model.ErrInvalidName) {
					t.Errorf("GetOrCreate with empty object type: expected ErrInvalidName, got %v", err)
				}

				if _, err := store.GetOrCreate(ctx, "Act\x00ive", "Task"); !errors.Is(err, model.ErrInvalidName) {
					t.Errorf("GetOrCreate with unsafe name: expected ErrInvalidName, got %v", err)
				}

				count, err := store.Count(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := int64(0), count; e != g {
					t.Errorf("store.Count(): expected %d, got %d", e, g)
				}

				return nil
			},
		},
		{
			Name: "FindNotFound",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				if _, err := store.Find(ctx, "Active", "Task"); !errors.Is(err, port.ErrNotFound) {
					t.Errorf("store.Find(): expected ErrNotFound, got %v", err)
				}

				if _, err := store.GetOrCreate(ctx, "Active", "Task"); err != nil {
					return errors.WithStack(err)
				}

				entry, err := store.Find(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := model.NewSectionKey("Active", "Task"), entry.Key(); e != g {
					t.Errorf("entry.Key(): expected %v, got %v", e, g)
				}

				return nil
			},
		},
		{
			Name: "IdempotentRemove",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				for _, name := range []string{"Active", "Done"} {
					if _, err := store.GetOrCreate(ctx, name, "Task"); err != nil {
						return errors.WithStack(err)
					}
				}

				if err := store.Remove(ctx, "Active", "Task"); err != nil {
					return errors.WithStack(err)
				}

				once, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				if err := store.Remove(ctx, "Active", "Task"); err != nil {
					return errors.WithStack(err)
				}

				twice, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, once, model.NewSectionKey("Done", "Task"))
				assertKeys(t, twice, model.NewSectionKey("Done", "Task"))

				if _, err := store.Find(ctx, "Active", "Task"); !errors.Is(err, port.ErrNotFound) {
					t.Errorf("store.Find() after removal: expected ErrNotFound, got %v", err)
				}

				if err := store.Remove(ctx, "Unknown", "Task"); err != nil {
					t.Errorf("removing an absent entry: expected no error, got %+v", err)
				}

				return nil
			},
		},
		{
			Name: "Reconcile",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				a := model.NewSectionKey("A", "Task")
				b := model.NewSectionKey("B", "Task")
				c := model.NewSectionKey("C", "Task")

				for _, k := range []model.SectionKey{c, a, b} {
					if _, err := store.GetOrCreate(ctx, k.Name, k.ObjectTypeName); err != nil {
						return errors.WithStack(err)
					}
				}

				removed, err := store.Reconcile(ctx, []model.SectionKey{a, c})
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := 1, len(removed); e != g {
					t.Fatalf("len(removed): expected %d, got %d", e, g)
				}

				if e, g := b, removed[0]; e != g {
					t.Errorf("removed[0]: expected %v, got %v", e, g)
				}

				entries, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries, c, a)

				if _, err := store.Find(ctx, b.Name, b.ObjectTypeName); !errors.Is(err, port.ErrNotFound) {
					t.Errorf("store.Find(B): expected ErrNotFound, got %v", err)
				}

				removed, err = store.Reconcile(ctx, nil)
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := 2, len(removed); e != g {
					t.Errorf("len(removed): expected %d, got %d", e, g)
				}

				count, err := store.Count(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := int64(0), count; e != g {
					t.Errorf("store.Count(): expected %d, got %d", e, g)
				}

				return nil
			},
		},
		{
			Name: "ScopeIsolation",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				if _, err := store.GetOrCreate(ctx, "Active", "Task"); err != nil {
					return errors.WithStack(err)
				}

				if _, err := store.GetOrCreate(ctx, "Active", "Project"); err != nil {
					return errors.WithStack(err)
				}

				if err := store.Remove(ctx, "Active", "Project"); err != nil {
					return errors.WithStack(err)
				}

				if _, err := store.Find(ctx, "Active", "Task"); err != nil {
					t.Errorf("store.Find(Task/Active): expected entry, got %+v", err)
				}

				if _, err := store.Find(ctx, "Active", "Project"); !errors.Is(err, port.ErrNotFound) {
					t.Errorf("store.Find(Project/Active): expected ErrNotFound, got %v", err)
				}

				removed, err := store.Reconcile(ctx, []model.SectionKey{model.NewSectionKey("Active", "Project")})
				if err != nil {
					return errors.WithStack(err)
				}

				if e, g := 1, len(removed); e != g {
					t.Errorf("len(removed): expected %d, got %d", e, g)
				}

				return nil
			},
		},
		{
			Name: "SaveCriteria",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				entry, err := store.GetOrCreate(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				predicate, err := model.NewPredicate(`status == "active"`)
				if err != nil {
					return errors.WithStack(err)
				}

				criteria, err := model.NewQueryCriteria(predicate, []model.SortDescriptor{model.Ascending("dueDate")}, []string{"title"})
				if err != nil {
					return errors.WithStack(err)
				}

				if err := store.Save(ctx, entry.WithCriteria(criteria)); err != nil {
					return errors.WithStack(err)
				}

				found, err := store.Find(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				if !found.Criteria().Equal(criteria) {
					t.Errorf("found.Criteria(): expected %s, got %s", criteria, found.Criteria())
				}

				again, err := store.GetOrCreate(ctx, "Active", "Task")
				if err != nil {
					return errors.WithStack(err)
				}

				if !again.Criteria().Equal(criteria) {
					t.Errorf("again.Criteria(): expected %s, got %s", criteria, again.Criteria())
				}

				if err := store.Remove(ctx, "Active", "Task"); err != nil {
					return errors.WithStack(err)
				}

				if err := store.Save(ctx, found); !errors.Is(err, port.ErrNotFound) {
					t.Errorf("saving a removed entry: expected ErrNotFound, got %v", err)
				}

				return nil
			},
		},
		{
			Name: "Reorder",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				a := model.NewSectionKey("A", "Task")
				b := model.NewSectionKey("B", "Task")
				c := model.NewSectionKey("C", "Task")
				d := model.NewSectionKey("D", "Task")

				for _, k := range []model.SectionKey{a, b, c, d} {
					if _, err := store.GetOrCreate(ctx, k.Name, k.ObjectTypeName); err != nil {
						return errors.WithStack(err)
					}
				}

				if err := store.Reorder(ctx, []model.SectionKey{c, model.NewSectionKey("Z", "Task"), a}); err != nil {
					return errors.WithStack(err)
				}

				entries, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries, c, a, b, d)

				e := model.NewSectionKey("E", "Task")
				if _, err := store.GetOrCreate(ctx, e.Name, e.ObjectTypeName); err != nil {
					return errors.WithStack(err)
				}

				entries, err = store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries, c, a, b, d, e)

				return nil
			},
		},
		{
			Name: "TransactionCommit",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				for _, name := range []string{"A", "B"} {
					if _, err := store.GetOrCreate(ctx, name, "Task"); err != nil {
						return errors.WithStack(err)
					}
				}

				err := store.Transaction(ctx, func(ctx context.Context, tx port.SectionCacheStore) error {
					for _, name := range []string{"C", "A"} {
						if _, err := tx.GetOrCreate(ctx, name, "Task"); err != nil {
							return errors.WithStack(err)
						}
					}

					keys := []model.SectionKey{model.NewSectionKey("C", "Task"), model.NewSectionKey("A", "Task")}

					if _, err := tx.Reconcile(ctx, keys); err != nil {
						return errors.WithStack(err)
					}

					if err := tx.Reorder(ctx, keys); err != nil {
						return errors.WithStack(err)
					}

					return nil
				})
				if err != nil {
					return errors.WithStack(err)
				}

				entries, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries, model.NewSectionKey("C", "Task"), model.NewSectionKey("A", "Task"))

				return nil
			},
		},
		{
			Name: "TransactionRollback",
			Run: func(t *testing.T, ctx context.Context, store port.SectionCacheStore) error {
				for _, name := range []string{"A", "B"} {
					if _, err := store.GetOrCreate(ctx, name, "Task"); err != nil {
						return errors.WithStack(err)
					}
				}

				errAbort := errors.New("abort")

				err := store.Transaction(ctx, func(ctx context.Context, tx port.SectionCacheStore) error {
					if _, err := tx.GetOrCreate(ctx, "C", "Task"); err != nil {
						return errors.WithStack(err)
					}

					if _, err := tx.Reconcile(ctx, []model.SectionKey{model.NewSectionKey("C", "Task")}); err != nil {
						return errors.WithStack(err)
					}

					count, err := tx.Count(ctx)
					if err != nil {
						return errors.WithStack(err)
					}

					if e, g := int64(1), count; e != g {
						t.Errorf("tx.Count(): expected %d, got %d", e, g)
					}

					return errAbort
				})
				if !errors.Is(err, errAbort) {
					t.Errorf("store.Transaction(): expected abort error, got %v", err)
				}

				entries, err := store.List(ctx)
				if err != nil {
					return errors.WithStack(err)
				}

				assertKeys(t, entries, model.NewSectionKey("A", "Task"), model.NewSectionKey("B", "Task"))

				return nil
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			ctx := context.Background()

			store, err := factory(t)
			if err != nil {
				t.Fatalf("could not create store: %+v", errors.WithStack(err))
			}

			if err := tc.Run(t, ctx, store); err != nil {
				t.Fatalf("could not run test: %+v", errors.WithStack(err))
			}
		})
	}
}

func assertKeys(t *testing.T, entries []*model.SectionCacheEntry, expected ...model.SectionKey) {
	t.Helper()

	if e, g := len(expected), len(entries); e != g {
		t.Errorf("len(entries): expected %d, got %d (%s)", e, g, spew.Sdump(entries))
		return
	}

	for i, k := range expected {
		if e, g := k, entries[i].Key(); e != g {
			t.Errorf("entries[%d].Key(): expected %v, got %v", i, e, g)
		}
	}
}
