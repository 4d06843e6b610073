package batch

import "errors"

var (
	// ErrInvalidRequest means the request failed validation before any
	// network call was made.
	ErrInvalidRequest = errors.New("invalid job request")
	// ErrJobNotFound means the compute service has no job with that ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrAlreadyTerminal means the job finished and cannot be terminated.
	ErrAlreadyTerminal = errors.New("job already in a terminal state")
)
