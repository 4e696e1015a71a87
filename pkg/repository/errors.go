package repository

import "errors"

var (
	// ErrNotFound is returned when a mutation targets a record that does not
	// exist yet. Workers let the queue retry it, since the creating job may
	// still be pending.
	ErrNotFound = errors.New("record not found")

	// ErrStale is returned when a versioned mutation is older than the stored
	// record. Workers treat it as already applied.
	ErrStale = errors.New("stale version")
)

// IsNotFound checks if error is a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStale checks if error is a rejected out-of-order write
func IsStale(err error) bool {
	return errors.Is(err, ErrStale)
}
