// Package services defines the business logic for responder rules and
// message dispatch. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrResponderNotFound indicates that the requested responder does not exist.
	ErrResponderNotFound = errors.New("responder not found")

	// ErrEmptyMessage is returned by dry runs given blank text.
	ErrEmptyMessage = errors.New("message is empty")
)

// ValidationError reports a create or update request that is missing or has
// malformed fields. Nothing is persisted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
