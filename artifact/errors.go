package artifact

import "errors"

var (
	// ErrNotFound is returned when no artifact exists for a session/name pair.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidName is returned for empty names or names that would escape
	// their session directory.
	ErrInvalidName = errors.New("invalid artifact name")
)
