package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for invariant violations and dependency failures. Invariant
// violations are rejected synchronously and never auto-corrected.
var (
	ErrBuiltinProtected     = errors.New("builtin type is protected")
	ErrSelfMerge            = errors.New("cannot merge a type into itself")
	ErrVocabularyFull       = errors.New("vocabulary full")
	ErrBelowMinimum         = errors.New("would shrink vocabulary below minimum")
	ErrTypeNotFound         = errors.New("vocabulary type not found")
	ErrTypeExists           = errors.New("vocabulary type already exists")
	ErrTypeInactive         = errors.New("vocabulary type is inactive")
	ErrInvalidTypeName      = errors.New("invalid relationship type name")
	ErrInvalidEdge          = errors.New("invalid concept edge")
	ErrJobNotFound          = errors.New("consolidation job not found")
	ErrJobNotCancellable    = errors.New("consolidation job is not cancellable")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// ValidationError wraps a sentinel with field context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
