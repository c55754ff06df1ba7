package inference

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed = errors.New("failed to connect to ollama")
	ErrModelNotFound    = errors.New("model not found")
	ErrBadStatus        = errors.New("unexpected status")
	ErrTimeout          = errors.New("inference timed out")
	ErrEmptyPrompt      = errors.New("prompt is empty")
)

// InferenceError wraps errors with the operation and HTTP status that caused them.
type InferenceError struct {
	Op      string // Operation that failed (generate, tags)
	Status  int    // HTTP status, 0 when no response was received
	Message string
	Err     error
}

func (e *InferenceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// NewInferenceError creates a new InferenceError.
func NewInferenceError(op string, status int, message string, err error) *InferenceError {
	return &InferenceError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     err,
	}
}
