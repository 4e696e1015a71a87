package service

import "errors"

var (
	// ErrValidation is returned for bad input, before any cache, queue or
	// store interaction
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when the target entity is in neither the
	// cache nor the store
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the current user may not change the entity
	ErrForbidden = errors.New("forbidden")
)

// IsValidation checks if error is a client input error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if error is a missing entity
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if error is a rejected ownership check
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
