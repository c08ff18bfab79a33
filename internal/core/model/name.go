package model

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// KeySeparator joins the parts of composite section keys. Names containing it
// (or NUL) cannot be encoded safely and are rejected.
const KeySeparator = "\x1f"

// ValidateName checks that a section or object type name is usable as part of
// a persisted key.
func ValidateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "name must not be empty")
	}

	if !utf8.ValidString(name) {
		return errors.Wrapf(ErrInvalidName, "name '%q' is not valid utf-8", name)
	}

	if strings.ContainsAny(name, "\x00"+KeySeparator) {
		return errors.Wrapf(ErrInvalidName, "name '%q' contains a reserved character", name)
	}

	return nil
}

func validateField(field string) error {
	if field == "" {
		return errors.Wrap(ErrInvalidField, "field name must not be empty")
	}

	if !utf8.ValidString(field) {
		return errors.Wrapf(ErrInvalidField, "field name '%q' is not valid utf-8", field)
	}

	return nil
}
