package model

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNewSectionCacheEntryInvalidName(t *testing.T) {
	type testCase struct {
		Name           string
		ObjectTypeName string
	}

	testCases := []testCase{
		{Name: "", ObjectTypeName: "Task"},
		{Name: "Active", ObjectTypeName: ""},
		{Name: "Act\x00ive", ObjectTypeName: "Task"},
		{Name: "Act" + KeySeparator + "ive", ObjectTypeName: "Task"},
		{Name: string([]byte{0xff, 0xfe}), ObjectTypeName: "Task"},
	}

	for i, tc := range testCases {
		if _, err := NewSectionCacheEntry(tc.Name, tc.ObjectTypeName); !errors.Is(err, ErrInvalidName) {
			t.Errorf("[%d] NewSectionCacheEntry(%q, %q): expected ErrInvalidName, got %v", i, tc.Name, tc.ObjectTypeName, err)
		}
	}
}

func TestSectionCacheEntryIdentity(t *testing.T) {
	entry, err := NewSectionCacheEntry("Active", "Task")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	criteria := mustCriteria(t, mustPredicate(t, `status == "active"`), nil, nil)

	updated := entry.WithCriteria(criteria)

	if updated == entry {
		t.Errorf("expected WithCriteria to return a new entry")
	}

	if !updated.SameSection(entry) {
		t.Errorf("expected updated entry to denote the same section")
	}

	if !entry.Criteria().IsZero() {
		t.Errorf("expected original entry criteria to be left untouched")
	}

	if !entry.IsStale(criteria) {
		t.Errorf("expected original entry to be stale against new criteria")
	}

	if updated.IsStale(criteria) {
		t.Errorf("expected updated entry not to be stale")
	}

	other, err := NewSectionCacheEntry("Active", "Project")
	if err != nil {
		t.Fatalf("%+v", errors.WithStack(err))
	}

	if other.SameSection(entry) {
		t.Errorf("expected entries of different object types to denote different sections")
	}

	if e, g := NewSectionKey("Active", "Task"), updated.Key(); e != g {
		t.Errorf("updated.Key(): expected %v, got %v", e, g)
	}
}
