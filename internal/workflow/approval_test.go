package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/lab-scheduler/internal/domain"
)

var (
	coordinator = domain.Actor{UserID: "coord-1", DisplayName: "Ana", Role: domain.RoleCoordinator}
	technician  = domain.Actor{UserID: "tech-1", DisplayName: "Bruno", Role: domain.RoleTechnician}
)

func TestInitialStatus(t *testing.T) {
	t.Parallel()

	if got := InitialStatus(coordinator); got != domain.StatusApproved {
		t.Errorf("coordinator: got %s", got)
	}
	if got := InitialStatus(technician); got != domain.StatusPending {
		t.Errorf("technician: got %s", got)
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   domain.Actor
		current domain.Status
		event   Transition
		want    domain.Status
		wantErr error
	}{
		{name: "approve pending", actor: coordinator, current: domain.StatusPending, event: TransitionApprove, want: domain.StatusApproved},
		{name: "reject pending", actor: coordinator, current: domain.StatusPending, event: TransitionReject, want: domain.StatusRejected},
		{name: "approve approved", actor: coordinator, current: domain.StatusApproved, event: TransitionApprove, wantErr: ErrInvalidTransition},
		{name: "reject rejected", actor: coordinator, current: domain.StatusRejected, event: TransitionReject, wantErr: ErrInvalidTransition},
		{name: "approve rejected", actor: coordinator, current: domain.StatusRejected, event: TransitionApprove, wantErr: ErrInvalidTransition},
		{name: "confirm rejected", actor: coordinator, current: domain.StatusRejected, event: TransitionConfirm, want: domain.StatusApproved},
		{name: "confirm approved", actor: coordinator, current: domain.StatusApproved, event: TransitionConfirm, wantErr: ErrInvalidTransition},
		{name: "technician approve", actor: technician, current: domain.StatusPending, event: TransitionApprove, wantErr: ErrForbidden},
		{name: "technician reject", actor: technician, current: domain.StatusPending, event: TransitionReject, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decide(ctx, tt.actor, tt.current, tt.event)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if got != tt.current {
					t.Fatalf("failed transition must keep status, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMachineCan(t *testing.T) {
	t.Parallel()

	m := NewMachine(domain.StatusPending)
	if !m.Can(TransitionApprove) || !m.Can(TransitionReject) {
		t.Fatalf("pending must accept approve and reject")
	}
	if err := m.Fire(context.Background(), TransitionApprove); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if m.Status() != domain.StatusApproved {
		t.Fatalf("unexpected status %s", m.Status())
	}
	if m.Can(TransitionReject) {
		t.Fatalf("approved must not accept reject")
	}
}

func TestPolicies(t *testing.T) {
	t.Parallel()

	own := domain.Booking{ID: "b1", ProposedByUserID: technician.UserID, Status: domain.StatusPending}
	ownApproved := own
	ownApproved.Status = domain.StatusApproved
	foreign := domain.Booking{ID: "b2", ProposedByUserID: "tech-2", Status: domain.StatusPending}

	if err := CanDelete(technician, own); err != nil {
		t.Errorf("technician should delete own pending: %v", err)
	}
	if err := CanDelete(technician, ownApproved); !errors.Is(err, ErrForbidden) {
		t.Errorf("technician must not delete approved: %v", err)
	}
	if err := CanEdit(technician, foreign); !errors.Is(err, ErrForbidden) {
		t.Errorf("technician must not edit foreign: %v", err)
	}
	for _, status := range []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusRejected} {
		b := own
		b.Status = status
		if err := CanEdit(technician, b); err != nil {
			t.Errorf("technician should edit own %s booking: %v", status, err)
		}
	}
	if err := CanDelete(technician, ownApproved); err == nil || !strings.Contains(err.Error(), "in status approved") {
		t.Errorf("unexpected delete message: %v", err)
	}
	if err := CanDelete(coordinator, ownApproved); err != nil {
		t.Errorf("coordinator unrestricted: %v", err)
	}
	if err := CanReplace(technician); !errors.Is(err, ErrForbidden) {
		t.Errorf("technician must not replace: %v", err)
	}
	if err := CanManageEvents(coordinator); err != nil {
		t.Errorf("coordinator manages events: %v", err)
	}
}
