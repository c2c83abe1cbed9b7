package session

import "errors"

var (
	// ErrInputTooLong is returned when a client sends a prefix longer than
	// the passage. The session stays usable.
	ErrInputTooLong = errors.New("typed prefix longer than passage")

	// ErrInvalidTransition is returned for operations not reachable from
	// the current session state.
	ErrInvalidTransition = errors.New("invalid session transition")
)
