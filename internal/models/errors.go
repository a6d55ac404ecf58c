package models

import "errors"

var (
	// ErrValidation marks malformed or empty input. Maps to 400.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an operation on an id that does not exist. Maps to 404.
	ErrNotFound = errors.New("task not found")
	// ErrStoreUnavailable marks a failed or unreachable database. Maps to 503.
	ErrStoreUnavailable = errors.New("store unavailable")
)
