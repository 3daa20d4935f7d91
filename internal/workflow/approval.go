// Package workflow implements the booking approval state machine and the
// role rules that guard it.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/example/lab-scheduler/internal/domain"
)

var (
	// ErrForbidden is returned when the actor's role or ownership does not
	// allow the requested action.
	ErrForbidden = errors.New("workflow: forbidden")
	// ErrInvalidTransition is returned when the booking's current status does
	// not accept the requested transition.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
)

// Transition names an approval event.
type Transition string

const (
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	// TransitionConfirm is a coordinator edit that also approves the record.
	TransitionConfirm Transition = "confirm"
)

var approvalEvents = fsm.Events{
	{Name: string(TransitionApprove), Src: []string{string(domain.StatusPending)}, Dst: string(domain.StatusApproved)},
	{Name: string(TransitionReject), Src: []string{string(domain.StatusPending)}, Dst: string(domain.StatusRejected)},
	{Name: string(TransitionConfirm), Src: []string{string(domain.StatusPending), string(domain.StatusRejected)}, Dst: string(domain.StatusApproved)},
}

// Machine tracks one booking's status.
type Machine struct {
	fsm *fsm.FSM
}

// NewMachine starts a machine in the given status.
func NewMachine(status domain.Status) *Machine {
	return &Machine{fsm: fsm.NewFSM(string(status), approvalEvents, fsm.Callbacks{})}
}

// Status returns the current status.
func (m *Machine) Status() domain.Status {
	return domain.Status(m.fsm.Current())
}

// Can reports whether t is allowed from the current status.
func (m *Machine) Can(t Transition) bool {
	return m.fsm.Can(string(t))
}

// Fire applies t. It does not check roles.
func (m *Machine) Fire(ctx context.Context, t Transition) error {
	from := m.fsm.Current()
	if !m.Can(t) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, from)
	}
	if err := m.fsm.Event(ctx, string(t)); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, t, from, err)
	}
	return nil
}

// InitialStatus is the status a new booking gets from its creator.
func InitialStatus(actor domain.Actor) domain.Status {
	if actor.IsCoordinator() {
		return domain.StatusApproved
	}
	return domain.StatusPending
}

// Decide checks authorization for t and returns the status it produces.
// Approve, reject and confirm are coordinator-only.
func Decide(ctx context.Context, actor domain.Actor, current domain.Status, t Transition) (domain.Status, error) {
	if !actor.IsCoordinator() {
		return current, fmt.Errorf("%w: %s requires coordinator", ErrForbidden, t)
	}
	m := NewMachine(current)
	if err := m.Fire(ctx, t); err != nil {
		return current, err
	}
	return m.Status(), nil
}
