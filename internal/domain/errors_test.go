package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("weights", "keys differ from vectors")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	var ve *ValidationError
	if !errors.As(fmt.Errorf("search: %w", err), &ve) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	if ve.Field != "weights" {
		t.Errorf("Field = %q", ve.Field)
	}
	if got := err.Error(); got != "validation failed: weights: keys differ from vectors" {
		t.Errorf("Error() = %q", got)
	}
	if got := NewValidationError("", "empty").Error(); got != "validation failed: empty" {
		t.Errorf("Error() without field = %q", got)
	}
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := NewStoreError("upsert", cause)
	if !errors.Is(err, ErrStore) {
		t.Error("expected errors.Is(err, ErrStore)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("store error must not match ErrValidation")
	}
}

func TestProjectionError(t *testing.T) {
	err := NewProjectionError("Severity", "not a number")
	if !errors.Is(err, ErrProjection) {
		t.Error("expected errors.Is(err, ErrProjection)")
	}
	if got := err.Error(); got != `projection error: column "Severity": not a number` {
		t.Errorf("Error() = %q", got)
	}
}
