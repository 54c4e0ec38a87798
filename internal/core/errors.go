package core

import "errors"

var (
	// ErrConfig is returned for a malformed or inconsistent schedule or base configuration.
	ErrConfig = errors.New("invalid configuration")

	// ErrParse is returned when a run identifier has no numeric suffix.
	ErrParse = errors.New("invalid run identifier")
)
