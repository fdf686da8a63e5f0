package audit

import "errors"

// Standard errors for audit store operations.
var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")

	// ErrStoreDisabled is returned when the store is disabled.
	ErrStoreDisabled = errors.New("store is disabled")

	// ErrInvalidInput is returned when the input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionFailed is returned when the store connection fails.
	ErrConnectionFailed = errors.New("store connection failed")
)
