package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an identifier matches no record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput rejects malformed requests that carry no field detail.
	ErrInvalidInput = errors.New("invalid data")
	// ErrUnauthorized is returned for missing or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict signals a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition rejects a status change from the wrong origin.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError collects user-correctable problems keyed by field name.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// FieldError builds a ValidationError for a single field.
func FieldError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add records msg for field, keeping the first message per field.
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	if _, ok := v.Fields[field]; !ok {
		v.Fields[field] = msg
	}
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// Err returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
