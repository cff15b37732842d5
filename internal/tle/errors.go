package tle

import (
	"errors"
	"fmt"
)

// ErrMalformedElementSet is returned when an element set fails length,
// checksum or field validation.
var ErrMalformedElementSet = errors.New("malformed element set")

// FieldError describes which part of an element set failed validation.
// Columns are 1-based and inclusive, matching the published format.
type FieldError struct {
	Line   int
	Field  string
	Start  int
	End    int
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Start > 0 {
		return fmt.Sprintf("line %d %s (cols %d-%d, %q): %s", e.Line, e.Field, e.Start, e.End, e.Value, e.Reason)
	}
	return fmt.Sprintf("line %d %s: %s", e.Line, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformedElementSet.
func (e *FieldError) Unwrap() error {
	return ErrMalformedElementSet
}
