package session

import "errors"

// Failure categories for session acquisition. The executor records the
// wrapped message on the FAILED job record, so the sentinel text doubles as
// the error message prefix.
var (
	// ErrConfiguration means required provider credentials are missing.
	// No provider call was made.
	ErrConfiguration = errors.New("configuration error")

	// ErrProvider means the provider rejected or failed the request.
	ErrProvider = errors.New("provider error")

	// ErrTimeout means the provider did not answer within the deadline.
	ErrTimeout = errors.New("timeout")
)
