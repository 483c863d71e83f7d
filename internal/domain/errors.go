package domain

import "errors"

var (
	// ErrValidation marks rejected input; wrapped errors carry the detail.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks operations referencing an unknown key or id.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks state transitions lost to a concurrent writer.
	ErrConflict = errors.New("conflict")
	// ErrNoProvider marks an empty active-provider rotation.
	ErrNoProvider = errors.New("no provider available")
)
