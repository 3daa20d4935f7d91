package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/workflow"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"labs": "required", "date": "invalid"}}
	if got := withFields.Error(); got != "validation failed: date, labs" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	base.add("first", "ignored")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected first message to win, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	var err error = &ConflictError{Reports: make([]ConflictReport, 2)}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict to match")
	}
	var cErr *ConflictError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &cErr) || len(cErr.Reports) != 2 {
		t.Fatalf("expected errors.As to find the reports")
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "not found", in: persistence.ErrNotFound, want: ErrNotFound},
		{name: "duplicate", in: fmt.Errorf("%w: idx_bookings_active_slot", persistence.ErrDuplicate), want: ErrConflict},
		{name: "unavailable", in: persistence.ErrUnavailable, want: ErrStorageUnavailable},
		{name: "forbidden", in: workflow.ErrForbidden, want: ErrForbidden},
		{name: "transition", in: workflow.ErrInvalidTransition, want: ErrInvalidTransition},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mapRepoError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("mapRepoError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if mapRepoError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
