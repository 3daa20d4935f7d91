package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/workflow"
)

var (
	// ErrForbidden is returned when the actor's role or ownership does not allow an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a write would double-book a lab slot.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidTransition is returned when a booking's status does not allow the requested change.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrStorageUnavailable wraps transient repository failures.
	ErrStorageUnavailable = errors.New("application: storage unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ConflictError carries the conflicts that blocked a write. Reports is empty
// when the storage layer rejected a slot that was taken after the check.
type ConflictError struct {
	Reports []ConflictReport
	Reason  string
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	if c.Reason != "" {
		return "conflict: " + c.Reason
	}
	return fmt.Sprintf("conflict: %d candidate(s) collide with existing records", len(c.Reports))
}

// Unwrap lets errors.Is match ErrConflict.
func (c *ConflictError) Unwrap() error {
	return ErrConflict
}

// mapRepoError translates persistence and workflow errors into application errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return &ConflictError{Reason: "the slot was taken by a concurrent request"}
	case errors.Is(err, workflow.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case errors.Is(err, workflow.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	case errors.Is(err, persistence.ErrUnavailable),
		errors.Is(err, persistence.ErrConstraintViolation),
		errors.Is(err, persistence.ErrCorruptDocument):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
