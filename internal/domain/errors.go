package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a malformed request rejected before any remote call.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrStore signals a failed container, upsert or query call.
	ErrStore = errors.New("store error")
	// ErrProjection signals a result row that could not be coerced into its target type.
	ErrProjection = errors.New("projection error")
	// ErrAuth signals a credential or connection resolution failure at construction.
	ErrAuth = errors.New("auth error")
)

// ValidationError wraps ErrValidation with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StoreError wraps a store failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore.Error(), e.Op, e.Err)
}

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a store failure of op.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// ProjectionError describes why a single row was rejected.
type ProjectionError struct {
	Column string
	Reason string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("%s: column %q: %s", ErrProjection.Error(), e.Column, e.Reason)
}

func (e *ProjectionError) Unwrap() error { return ErrProjection }

// NewProjectionError creates a projection error for column.
func NewProjectionError(column, reason string) error {
	return &ProjectionError{Column: column, Reason: reason}
}
