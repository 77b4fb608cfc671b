package orchestrator

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the selected entity no longer exists
	ErrNotFound = errors.New("not found")
	// ErrIO covers transport and backend failures
	ErrIO = errors.New("i/o failure")
	// ErrCancelled marks a request superseded by a newer one. It is never
	// surfaced to views.
	ErrCancelled = errors.New("cancelled")
)

// Classify maps an arbitrary provider error onto the error taxonomy.
// It returns nil for a nil error.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	default:
		return ErrIO
	}
}

// visible drops errors that views must not see
func visible(err error) error {
	if Classify(err) == ErrCancelled {
		return nil
	}
	return err
}
