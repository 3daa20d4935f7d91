package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/scheduler"
)

func TestHandleServiceError(t *testing.T) {
	t.Parallel()

	booking := domain.Booking{ID: "b1", Lab: "Anatomy 1", Date: "2025-11-25", TimeBlocks: []string{"07:00-09:10"}, Status: domain.StatusApproved}
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "forbidden", err: fmt.Errorf("%w: technician", application.ErrForbidden), wantStatus: http.StatusForbidden, wantCode: "AUTH_FORBIDDEN"},
		{name: "not found", err: application.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "transition", err: application.ErrInvalidTransition, wantStatus: http.StatusConflict, wantCode: "INVALID_TRANSITION"},
		{name: "storage", err: fmt.Errorf("%w: timeout", application.ErrStorageUnavailable), wantStatus: http.StatusServiceUnavailable, wantCode: "STORAGE_UNAVAILABLE"},
		{name: "validation", err: &application.ValidationError{FieldErrors: map[string]string{"date": "date is required"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: "VALIDATION_FAILED"},
		{name: "race", err: &application.ConflictError{Reason: "taken"}, wantStatus: http.StatusConflict, wantCode: "SLOT_TAKEN"},
		{
			name: "conflicts",
			err: &application.ConflictError{Reports: []application.ConflictReport{{
				Candidate: booking,
				Record:    application.ConflictRecord{Source: scheduler.SourceBooking, Booking: &booking},
			}}},
			wantStatus: http.StatusConflict,
			wantCode:   "SLOT_CONFLICT",
		},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			newResponder(nil).handleServiceError(context.Background(), rec, tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ErrorCode != tt.wantCode || body.Message == "" {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestTranslateValidationMessage(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"date is required":                 "A data é obrigatória.",
		`unknown time block "06:00-07:00"`: `Horário desconhecido: "06:00-07:00"`,
		`unknown course "Law"`:             `Curso desconhecido: "Law"`,
		"recurrence: invalid frequency":    "Repetição inválida: invalid frequency",
		"something new":                    "something new",
	}
	for in, want := range tests {
		if got := translateValidationMessage(in); got != want {
			t.Errorf("translate(%q) = %q, want %q", in, got, want)
		}
	}
}
