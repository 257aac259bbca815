package task

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates input failed a precondition before any write.
	ErrValidation = errors.New("invalid task")
	// ErrNotFound indicates a mutation targeted an id that does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrStorage indicates the persistence medium failed.
	ErrStorage = errors.New("task storage failure")
)

// ValidationError describes the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError carries the id that could not be found.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("task storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}
