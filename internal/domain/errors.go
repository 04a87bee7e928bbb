// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoApplicableRule means resolution found zero eligible rules across
	// all four tiers. The caller decides whether to apply its own default.
	ErrNoApplicableRule = errors.New("no applicable commission rule")

	// ErrScopeConflict means an upsert would leave two active rules for one
	// scope key. Surfaced by the store on constraint violation.
	ErrScopeConflict = errors.New("active commission rule already exists for scope")

	ErrRuleNotFound    = errors.New("commission rule not found")
	ErrProductNotFound = errors.New("product not found")
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level feedback for a rejected rule input.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid rule input: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
