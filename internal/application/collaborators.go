package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
)

// Collaborators are the side-effect dependencies shared by the write services.
// Nil members are skipped.
type Collaborators struct {
	Availability *AvailabilityService
	Notifier     notify.Notifier
	Activity     *ActivityLog
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

func (c Collaborators) withDefaults() Collaborators {
	if c.IDGenerator == nil {
		c.IDGenerator = func() string { return "" }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.Logger = defaultLogger(c.Logger)
	return c
}

func (c Collaborators) notify(ctx context.Context, n notify.Notice, lc notify.Lifecycle, extra ...string) []notify.Delivery {
	if c.Notifier == nil {
		return nil
	}
	return c.Notifier.Notify(ctx, n, lc, extra...)
}

func (c Collaborators) notifyBooking(ctx context.Context, b domain.Booking, lc notify.Lifecycle, actor domain.Actor) []notify.Delivery {
	var extra []string
	switch lc {
	case notify.BookingAdded, notify.BookingApproved, notify.BookingEdited, notify.BookingDeleted:
		extra = technicianChannels(b)
	}
	return c.notify(ctx, notify.BookingNotice(b, actor.DisplayName), lc, extra...)
}

func (c Collaborators) notifyEvent(ctx context.Context, e domain.Event, lc notify.Lifecycle, actor domain.Actor) []notify.Delivery {
	return c.notify(ctx, notify.EventNotice(e, actor.DisplayName), lc)
}

func (c Collaborators) invalidate(ctx context.Context, dates ...string) {
	c.Availability.InvalidateDate(ctx, dates...)
}

func technicianChannels(b domain.Booking) []string {
	if len(b.AssignedTechnicianIDs) == 0 {
		return nil
	}
	out := make([]string, 0, len(b.AssignedTechnicianIDs))
	for _, id := range b.AssignedTechnicianIDs {
		out = append(out, notify.UserChannel(id))
	}
	return out
}

func validateActor(actor domain.Actor) error {
	if actor.UserID == "" || !actor.Role.Valid() {
		return ErrForbidden
	}
	return nil
}
