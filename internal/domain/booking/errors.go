package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("booking not found")
	ErrMissingDeclineReason = errors.New("decline reason is required")
	ErrConflictDetection    = errors.New("conflict detection failed")
	ErrConfirmationRequired = errors.New("removal must be confirmed with DELETE")
)

// ValidationError lists field-level problems keyed by json field name.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
