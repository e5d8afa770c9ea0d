package storage

import "errors"

var (
	// ErrCredentialNotFound is returned when a credential id does not exist
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrInvalidProvider is returned when a provider value is outside the enum
	ErrInvalidProvider = errors.New("invalid provider")
)
