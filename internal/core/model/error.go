package model

import "errors"

var (
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidField     = errors.New("invalid field")
	ErrInvalidPredicate = errors.New("invalid predicate")
	ErrCorruptEncoding  = errors.New("corrupt encoding")
)
