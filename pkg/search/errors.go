package search

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterField is returned when a filter, sort or group entry names a field
	// outside the entity's allow-list or uses it in a role it does not declare.
	ErrInvalidFilterField = errors.New("invalid filter field")
	// ErrInvalidFilterValue is returned when a value does not match the field type or operator.
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrInvalidPagination is returned for a page below 1 or a limit outside [1, max page size].
	ErrInvalidPagination = errors.New("invalid pagination")
	// ErrUnknownEntity is returned when Search is called for an entity that was never registered.
	ErrUnknownEntity = errors.New("unknown search entity")
	// ErrMissingScope is returned when a zero ScopePredicate reaches the builder.
	ErrMissingScope = errors.New("scope predicate is required")
)

// SpecError describes the first violation found in a raw search document.
type SpecError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *SpecError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v %q: %s", e.Kind, e.Field, e.Reason)
}

func (e *SpecError) Unwrap() error {
	return e.Kind
}

func fieldError(field, reason string) error {
	return &SpecError{Kind: ErrInvalidFilterField, Field: field, Reason: reason}
}

func valueError(field, reason string) error {
	return &SpecError{Kind: ErrInvalidFilterValue, Field: field, Reason: reason}
}

func paginationError(field, reason string) error {
	return &SpecError{Kind: ErrInvalidPagination, Field: field, Reason: reason}
}
