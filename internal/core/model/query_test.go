package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func titles(objects []Object) []string {
	titles := make([]string, 0, len(objects))
	for _, o := range objects {
		titles = append(titles, o["title"].(string))
	}
	return titles
}

func assertTitles(t *testing.T, expected []string, objects []Object) {
	t.Helper()

	got := titles(objects)
	if e, g := len(expected), len(got); e != g {
		t.Fatalf("len(objects): expected %d, got %d (%v)", e, g, got)
	}

	for i := range expected {
		if e, g := expected[i], got[i]; e != g {
			t.Errorf("objects[%d].title: expected '%s', got '%s' (%v)", i, e, g, got)
		}
	}
}

func TestTaskSectionExample(t *testing.T) {
	entry, err := NewSectionCacheEntry("Active", "Task")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if !entry.Criteria().IsZero() {
		t.Errorf("expected default criteria, got %s", entry.Criteria())
	}

	criteria := mustCriteria(t, nil, []SortDescriptor{Ascending("dueDate")}, nil)

	updated := entry.WithCriteria(criteria)

	decoded, err := DeserializeCriteria(updated.Criteria().Serialize())
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if !decoded.Equal(criteria) {
		t.Errorf("decoded criteria: expected %s, got %s", criteria, decoded)
	}

	query := decoded.ToExecutableQuery("Task")

	if e, g := "Task", query.ObjectTypeName; e != g {
		t.Errorf("query.ObjectTypeName: expected '%s', got '%s'", e, g)
	}

	if query.Filter != nil {
		t.Errorf("query.Filter: expected nil, got %s", query.Filter)
	}

	if e, g := 0, len(query.Distinct); e != g {
		t.Errorf("len(query.Distinct): expected %d, got %d", e, g)
	}

	if e, g := 1, len(query.Sort); e != g {
		t.Fatalf("len(query.Sort): expected %d, got %d", e, g)
	}

	if e, g := Ascending("dueDate"), query.Sort[0]; e != g {
		t.Errorf("query.Sort[0]: expected %v, got %v", e, g)
	}
}

func TestQueryApply(t *testing.T) {
	now := time.Now()

	objects := []Object{
		{"title": "write spec", "status": "active", "priority": 2, "dueDate": now.Add(3 * time.Hour)},
		{"title": "review", "status": "done", "priority": 5, "dueDate": now.Add(1 * time.Hour)},
		{"title": "deploy", "status": "active", "priority": 5, "dueDate": now.Add(2 * time.Hour)},
		{"title": "write spec", "status": "active", "priority": 1, "dueDate": now.Add(1 * time.Hour)},
		{"title": "triage", "status": "active", "priority": 5, "dueDate": now},
	}

	type testCase struct {
		Name     string
		Criteria func(t *testing.T) QueryCriteria
		Expected []string
	}

	testCases := []testCase{
		{
			Name: "NaturalOrder",
			Criteria: func(t *testing.T) QueryCriteria {
				return QueryCriteria{}
			},
			Expected: []string{"write spec", "review", "deploy", "write spec", "triage"},
		},
		{
			Name: "SortByDueDate",
			Criteria: func(t *testing.T) QueryCriteria {
				return mustCriteria(t, nil, []SortDescriptor{Ascending("dueDate")}, nil)
			},
			Expected: []string{"triage", "review", "write spec", "deploy", "write spec"},
		},
		{
			Name: "FilterThenSortOnMultipleFields",
			Criteria: func(t *testing.T) QueryCriteria {
				return mustCriteria(t,
					mustPredicate(t, `status == "active"`),
					[]SortDescriptor{Descending("priority"), Ascending("dueDate")},
					nil,
				)
			},
			Expected: []string{"triage", "deploy", "write spec", "write spec"},
		},
		{
			// Deduplication keeps the first object in store order, before the
			// sort is applied: the "write spec" due in one hour is dropped.
			Name: "DistinctBeforeSort",
			Criteria: func(t *testing.T) QueryCriteria {
				return mustCriteria(t,
					mustPredicate(t, `status == "active"`),
					[]SortDescriptor{Ascending("dueDate")},
					[]string{"title"},
				)
			},
			Expected: []string{"triage", "deploy", "write spec"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			query := tc.Criteria(t).ToExecutableQuery("Task")

			results, err := query.Apply(objects)
			if err != nil {
				t.Fatalf("%+v", errors.WithStack(err))
			}

			assertTitles(t, tc.Expected, results)
		})
	}
}

func TestCompareValues(t *testing.T) {
	type testCase struct {
		A, B     any
		Expected int
	}

	now := time.Now()

	testCases := []testCase{
		{A: nil, B: nil, Expected: 0},
		{A: nil, B: 1, Expected: -1},
		{A: false, B: true, Expected: -1},
		{A: 2, B: int64(2), Expected: 0},
		{A: 2, B: 2.5, Expected: -1},
		{A: uint64(10), B: 3, Expected: 1},
		{A: "a", B: "b", Expected: -1},
		{A: 10, B: "1", Expected: -1},
		{A: now, B: now.Add(time.Second), Expected: -1},
		{A: "z", B: now, Expected: -1},
	}

	for i, tc := range testCases {
		if e, g := tc.Expected, CompareValues(tc.A, tc.B); e != g {
			t.Errorf("[%d] CompareValues(%v, %v): expected %d, got %d", i, tc.A, tc.B, e, g)
		}
	}
}

func TestQueryDistinctKeyIsUnambiguous(t *testing.T) {
	objects := []Object{
		{"title": "first", "f1": "a", "f2": "b" + KeySeparator + "string=c"},
		{"title": "second", "f1": "a" + KeySeparator + "string=b", "f2": "c"},
		{"title": "third", "f1": "a", "f2": "b" + KeySeparator + "string=c"},
	}

	query := mustCriteria(t, nil, nil, []string{"f1", "f2"}).ToExecutableQuery("Task")

	results, err := query.Apply(objects)
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	assertTitles(t, []string{"first", "second"}, results)
}
