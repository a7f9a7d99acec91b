package utils

import "errors"

// Error categories shared by every package. Package level sentinels wrap
// one of these so callers can classify with errors.Is.
var (
	// ErrInput marks malformed or incomplete input detected during setup
	ErrInput = errors.New("input error")
	// ErrFatal marks configuration inconsistencies that must stop a run
	ErrFatal = errors.New("fatal configuration error")
)
