package service

import (
	"context"
	"testing"
	"time"

	"github.com/bornholm/sectioncache/internal/adapter/memory"
	"github.com/bornholm/sectioncache/internal/core/model"
	"github.com/bornholm/sectioncache/internal/core/port"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func newTaskObjects() *memory.ObjectStore {
	objects := memory.NewObjectStore()
	objects.Add("Task",
		model.Object{"title": "write report", "status": "active", "dueDate": day(3)},
		model.Object{"title": "pay bills", "status": "done", "dueDate": day(1)},
		model.Object{"title": "call bank", "status": "active", "dueDate": day(2)},
		model.Object{"title": "book train", "status": "later", "dueDate": day(5)},
	)

	return objects
}

func byDueDate(t *testing.T) model.QueryCriteria {
	criteria, err := model.NewQueryCriteria(nil, []model.SortDescriptor{model.Ascending("dueDate")}, nil)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	return criteria
}

func sectionNames(sections []*Section) []string {
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, s.Entry.Name())
	}
	return names
}

func titles(objects []model.Object) []string {
	titles := make([]string, 0, len(objects))
	for _, o := range objects {
		titles = append(titles, o["title"].(string))
	}
	return titles
}

func assertStrings(t *testing.T, label string, e, g []string) {
	t.Helper()

	if len(e) != len(g) {
		t.Fatalf("%s: expected %v, got %v", label, e, g)
	}

	for i := range e {
		if e[i] != g[i] {
			t.Errorf("%s[%d]: expected '%s', got '%s'", label, i, e[i], g[i])
		}
	}
}

func TestRefresherRefresh(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSectionCacheStore()
	objects := newTaskObjects()
	refresher := NewRefresher(store, objects)

	partition, err := refresher.Refresh(ctx, RefreshRequest{
		ObjectTypeName: "Task",
		Criteria:       byDueDate(t),
		SectionKeyPath: "status",
	})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	assertStrings(t, "sections", []string{"done", "active", "later"}, sectionNames(partition.Sections))
	assertStrings(t, "active objects", []string{"call bank", "write report"}, titles(partition.Sections[1].Objects))

	if e, g := 0, len(partition.Removed); e != g {
		t.Errorf("len(partition.Removed): expected %d, got %d", e, g)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := 3, len(entries); e != g {
		t.Fatalf("len(entries): expected %d, got %d", e, g)
	}

	for i, entry := range entries {
		if !entry.SameSection(partition.Sections[i].Entry) {
			t.Errorf("entries[%d]: expected section '%s', got '%s'", i, partition.Sections[i].Entry.Key(), entry.Key())
		}

		materialized, err := refresher.Materialize(ctx, entry)
		if err != nil {
			t.Fatalf("%+v", errors.WithStack(err))
		}

		assertStrings(t, "materialized "+entry.Name(), titles(partition.Sections[i].Objects), titles(materialized))
	}
}

func TestRefresherReconcile(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSectionCacheStore()
	objects := newTaskObjects()
	refresher := NewRefresher(store, objects)

	if _, err := store.GetOrCreate(ctx, "Inbox", "Project"); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	req := RefreshRequest{
		ObjectTypeName: "Task",
		Criteria:       byDueDate(t),
		SectionKeyPath: "status",
	}

	if _, err := refresher.Refresh(ctx, req); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	objects.Replace("Task",
		model.Object{"title": "write report", "status": "active", "dueDate": day(3)},
		model.Object{"title": "book train", "status": "later", "dueDate": day(1)},
	)

	partition, err := refresher.Refresh(ctx, req)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	assertStrings(t, "sections", []string{"later", "active"}, sectionNames(partition.Sections))

	if e, g := 1, len(partition.Removed); e != g {
		t.Fatalf("len(partition.Removed): expected %d, got %d", e, g)
	}

	if e, g := model.NewSectionKey("done", "Task"), partition.Removed[0]; e != g {
		t.Errorf("partition.Removed[0]: expected %s, got %s", e, g)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.ObjectTypeName()+"/"+e.Name())
	}

	assertStrings(t, "entries", []string{"Task/later", "Task/active", "Project/Inbox"}, names)
}

func TestRefresherReplacesStaleCriteria(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSectionCacheStore()
	refresher := NewRefresher(store, newTaskObjects())

	req := RefreshRequest{
		ObjectTypeName: "Task",
		Criteria:       byDueDate(t),
		SectionKeyPath: "status",
	}

	if _, err := refresher.Refresh(ctx, req); err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	before, err := store.Find(ctx, "active", "Task")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	criteria, err := model.NewQueryCriteria(nil, []model.SortDescriptor{model.Descending("dueDate")}, []string{"title"})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	req.Criteria = criteria

	partition, err := refresher.Refresh(ctx, req)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	after, err := store.Find(ctx, "active", "Task")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if !after.IsStale(before.Criteria()) {
		t.Errorf("expected criteria to be replaced, got %s", spew.Sdump(after.Criteria().String()))
	}

	if !after.SameSection(before) {
		t.Errorf("expected section identity to be kept")
	}

	assertStrings(t, "sections", []string{"later", "active", "done"}, sectionNames(partition.Sections))
	assertStrings(t, "active objects", []string{"write report", "call bank"}, titles(partition.Sections[1].Objects))
}

func TestRefresherDistinctWithinSections(t *testing.T) {
	ctx := context.Background()

	objects := memory.NewObjectStore()
	objects.Add("Task",
		model.Object{"title": "dup", "status": "active", "dueDate": day(1)},
		model.Object{"title": "dup", "status": "done", "dueDate": day(2)},
	)

	refresher := NewRefresher(memory.NewSectionCacheStore(), objects)

	criteria, err := model.NewQueryCriteria(nil, []model.SortDescriptor{model.Ascending("dueDate")}, []string{"title"})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	partition, err := refresher.Refresh(ctx, RefreshRequest{
		ObjectTypeName: "Task",
		Criteria:       criteria,
		SectionKeyPath: "status",
	})
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	assertStrings(t, "sections", []string{"active", "done"}, sectionNames(partition.Sections))

	for _, section := range partition.Sections {
		materialized, err := refresher.Materialize(ctx, section.Entry)
		if err != nil {
			t.Fatalf("%+v", errors.WithStack(err))
		}

		if e, g := 1, len(materialized); e != g {
			t.Fatalf("len(materialized %s): expected %d, got %d", section.Entry.Name(), e, g)
		}

		assertStrings(t, "materialized "+section.Entry.Name(), titles(section.Objects), titles(materialized))

		if e, g := section.Objects[0]["status"], materialized[0]["status"]; e != g {
			t.Errorf("materialized %s status: expected '%v', got '%v'", section.Entry.Name(), e, g)
		}
	}
}

func TestRefresherInvalidRequests(t *testing.T) {
	ctx := context.Background()

	objects := memory.NewObjectStore()
	objects.Add("Task", model.Object{"title": "untitled", "status": 3})

	refresher := NewRefresher(memory.NewSectionCacheStore(), objects)

	type testCase struct {
		Name          string
		Request       RefreshRequest
		ExpectedError error
	}

	testCases := []testCase{
		{
			Name:          "InvalidKeyPath",
			Request:       RefreshRequest{ObjectTypeName: "Task", SectionKeyPath: "status || true"},
			ExpectedError: model.ErrInvalidField,
		},
		{
			Name:          "InvalidObjectType",
			Request:       RefreshRequest{ObjectTypeName: "", SectionKeyPath: "status"},
			ExpectedError: model.ErrInvalidName,
		},
		{
			Name:          "NonStringSectionKey",
			Request:       RefreshRequest{ObjectTypeName: "Task", SectionKeyPath: "status"},
			ExpectedError: model.ErrInvalidName,
		},
		{
			Name:          "MissingSectionKey",
			Request:       RefreshRequest{ObjectTypeName: "Task", SectionKeyPath: "owner"},
			ExpectedError: model.ErrInvalidName,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			_, err := refresher.Refresh(ctx, tc.Request)
			if !errors.Is(err, tc.ExpectedError) {
				t.Errorf("expected error '%v', got '%+v'", tc.ExpectedError, err)
			}
		})
	}
}

type conflictingStore struct {
	port.SectionCacheStore
	calls int
}

func (s *conflictingStore) Transaction(ctx context.Context, fn func(ctx context.Context, store port.SectionCacheStore) error) error {
	s.calls++
	return errors.WithStack(port.ErrTransactionConflict)
}

func TestRefresherDoesNotRetryConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{SectionCacheStore: memory.NewSectionCacheStore()}
	refresher := NewRefresher(store, newTaskObjects())

	_, err := refresher.Refresh(ctx, RefreshRequest{
		ObjectTypeName: "Task",
		Criteria:       byDueDate(t),
		SectionKeyPath: "status",
	})
	if !errors.Is(err, port.ErrTransactionConflict) {
		t.Fatalf("expected ErrTransactionConflict, got '%+v'", err)
	}

	if e, g := 1, store.calls; e != g {
		t.Errorf("store.calls: expected %d, got %d", e, g)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if e, g := int64(0), count; e != g {
		t.Errorf("store.Count(): expected %d, got %d", e, g)
	}
}
