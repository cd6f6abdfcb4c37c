package types

import "errors"

// Domain errors for type validation
var (
	// ErrNoData is returned when an operation needs recorded data and none exists
	ErrNoData = errors.New("no data available")
	// ErrInvalidIdentity is returned when a pattern identity is incomplete or malformed
	ErrInvalidIdentity = errors.New("invalid pattern identity")
	// ErrNegativeValue is returned when a timing, count, or size is negative
	ErrNegativeValue = errors.New("value must be non-negative")
)
