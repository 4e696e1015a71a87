package queue

import "errors"

var (
	// ErrUnknownJob is returned for a job name outside the catalogue
	ErrUnknownJob = errors.New("unknown job")

	// ErrInvalidPayload is returned when a payload fails validation at enqueue
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrJobNotFound is returned when an inspected job no longer exists
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned by enqueues issued after Close
	ErrQueueClosed = errors.New("queue closed")
)

// IsInvalidPayload checks if error is a rejected payload
func IsInvalidPayload(err error) bool {
	return errors.Is(err, ErrInvalidPayload)
}
