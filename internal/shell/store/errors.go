// Package store persists generation runs and their artifacts in SQLite.
package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound is returned when a run or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when an ID is already taken.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrForeignKey is returned when an artifact references a missing run.
	ErrForeignKey = errors.New("referenced run does not exist")

	// ErrConnectionFailed is returned when the database cannot be opened.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrMigrationFailed is returned when the schema cannot be brought up to date.
	ErrMigrationFailed = errors.New("database migration failed")

	// ErrInvalidData is returned when a stored profile, finding list or
	// timestamp cannot be encoded or decoded.
	ErrInvalidData = errors.New("invalid stored data")

	// ErrTxFailed is returned when a transaction cannot begin or commit.
	ErrTxFailed = errors.New("transaction failed")
)

// StoreError carries the failed operation and the row it concerned.
type StoreError struct {
	Op      string // e.g. "CreateRun"
	Entity  string // "run" or "artifact"
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	subject := e.Op
	if e.Entity != "" {
		subject += " " + e.Entity
	}
	if e.ID != "" {
		subject += " " + e.ID
	}
	return fmt.Sprintf("%s: %s", subject, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}

// constraintViolation maps SQLite constraint failures onto the sentinels.
// It returns nil for anything else.
func constraintViolation(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return nil
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
		return ErrDuplicateID
	case sqlite3.ErrConstraintForeignKey:
		return ErrForeignKey
	}
	return nil
}
