package services

import "errors"

// Error kinds returned by the tracker and the streak engine. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	// ErrValidation marks malformed or missing input. No state was changed.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a habit that does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks an unrecognized habit frequency.
	ErrConfiguration = errors.New("configuration error")
	// ErrPersistence marks a failed transaction. Everything in it was rolled back.
	ErrPersistence = errors.New("persistence error")
)
