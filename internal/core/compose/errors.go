// Package compose extracts prompt context from an existing Docker Compose file.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrEmptyInput is returned for a blank compose document.
	ErrEmptyInput = errors.New("compose spec is empty")

	// ErrInvalidYAML is returned when the document is not a YAML mapping.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrNoServices is returned when the document defines no services.
	ErrNoServices = errors.New("compose spec must define at least one service")

	// ErrCircularDependency is returned when depends_on forms a cycle.
	ErrCircularDependency = errors.New("circular dependency detected")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
