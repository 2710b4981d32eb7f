package repository

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStatusConflict is returned by conditional status updates when the
	// row is no longer in the expected prior status. It is the guard that
	// makes the Committing transition atomic.
	ErrStatusConflict = errors.New("status conflict")
)
