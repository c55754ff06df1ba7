package analysis

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when the analysis target does not exist.
	ErrNotFound = errors.New("repository path does not exist")

	// ErrNotDirectory is returned when the analysis target is a file.
	ErrNotDirectory = errors.New("repository path is not a directory")
)

// AnalysisError wraps a fatal analysis failure with the offending path.
type AnalysisError struct {
	Path string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
