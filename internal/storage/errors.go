package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidUnit is returned when a temperature unit other than "f" or "c" is requested
	ErrInvalidUnit = errors.New("invalid temperature unit")

	// ErrNotFound is returned when an administrative delete targets a missing record
	ErrNotFound = errors.New("record not found")
)

// StorageError reports a failed persistence operation. The store never
// retries; callers decide what to do with it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// wrap returns err as a *StorageError for op, or nil
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is or wraps a *StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
