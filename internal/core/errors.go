package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("invalid expense payload")
	// ErrMissingID is returned when update or delete has no target identifier.
	ErrMissingID = errors.New("missing id parameter")
	// ErrMalformedBody is returned when the request body is not parseable JSON.
	ErrMalformedBody = errors.New("invalid JSON payload")
	// ErrInvalidAmount is returned by ParseAmount.
	ErrInvalidAmount = errors.New("invalid amount")
)

// ValidationError enumerates the fields that failed validation, in canonical order.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is(err, ErrValidation) match any validation failure.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err was caused by the caller's input and
// must be answered without touching the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMissingID) ||
		errors.Is(err, ErrMalformedBody)
}
