package storage

import "errors"

// Storage errors shared by all implementations. Reads that match nothing
// return empty slices, not an error, so there is no not-found sentinel.
var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
