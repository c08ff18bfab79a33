package model

import (
	"strings"

	"github.com/pkg/errors"
)

type SortDescriptor struct {
	Field     string
	Ascending bool
}

func (d SortDescriptor) String() string {
	if d.Ascending {
		return d.Field + ":asc"
	}

	return d.Field + ":desc"
}

func Ascending(field string) SortDescriptor {
	return SortDescriptor{Field: field, Ascending: true}
}

func Descending(field string) SortDescriptor {
	return SortDescriptor{Field: field, Ascending: false}
}

// ParseSortDescriptor parses "field", "field:asc" or "field:desc".
func ParseSortDescriptor(raw string) (SortDescriptor, error) {
	field, direction, _ := strings.Cut(raw, ":")

	if err := validateField(field); err != nil {
		return SortDescriptor{}, errors.WithStack(err)
	}

	switch strings.ToLower(direction) {
	case "", "asc":
		return Ascending(field), nil
	case "desc":
		return Descending(field), nil
	default:
		return SortDescriptor{}, errors.Wrapf(ErrInvalidField, "unknown sort direction '%s'", direction)
	}
}
