package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint,
	// including the active-slot index on bookings.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned for other constraint failures.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInvalidQuery is returned for queries the store cannot serve.
	ErrInvalidQuery = errors.New("persistence: invalid query")
	// ErrUnavailable wraps transient backend failures.
	ErrUnavailable = errors.New("persistence: store unavailable")
	// ErrCorruptDocument is returned when a stored document cannot be decoded.
	ErrCorruptDocument = errors.New("persistence: corrupt document")
)
