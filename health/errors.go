package health

import "errors"

var (
	// ErrCheckTimeout indicates a checker did not answer before the deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrProbeMismatch indicates a cache returned something other than
	// what the probe wrote.
	ErrProbeMismatch = errors.New("health: cache probe read back a different value")
)
