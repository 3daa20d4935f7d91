package workflow

import (
	"fmt"

	"github.com/example/lab-scheduler/internal/domain"
)

// CanReplace guards the replace resolution of a proposal.
func CanReplace(actor domain.Actor) error {
	if !actor.IsCoordinator() {
		return fmt.Errorf("%w: replacing existing records requires coordinator", ErrForbidden)
	}
	return nil
}

// CanManageEvents guards event creation, edits and deletion.
func CanManageEvents(actor domain.Actor) error {
	if !actor.IsCoordinator() {
		return fmt.Errorf("%w: events are managed by coordinators", ErrForbidden)
	}
	return nil
}

// CanEdit allows coordinators on any booking and everyone else on the
// bookings they proposed, in any status.
func CanEdit(actor domain.Actor, b domain.Booking) error {
	if actor.IsCoordinator() || b.ProposedByUserID == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: edit of a booking proposed by someone else", ErrForbidden)
}

// CanDelete allows coordinators on any booking and everyone else on their own
// pending bookings.
func CanDelete(actor domain.Actor, b domain.Booking) error {
	if actor.IsCoordinator() {
		return nil
	}
	if b.ProposedByUserID != actor.UserID {
		return fmt.Errorf("%w: delete of a booking proposed by someone else", ErrForbidden)
	}
	if b.Status != domain.StatusPending {
		return fmt.Errorf("%w: delete of a booking in status %s", ErrForbidden, b.Status)
	}
	return nil
}
