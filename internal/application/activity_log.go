package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/persistence"
)

// ActivityLog appends audit entries for creates and deletes. Recording is
// best effort and never fails the calling operation.
type ActivityLog struct {
	store       ActivityStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewActivityLog wires the audit trail.
func NewActivityLog(store ActivityStore, idGenerator func() string, now func() time.Time) *ActivityLog {
	return NewActivityLogWithLogger(store, idGenerator, now, nil)
}

// NewActivityLogWithLogger wires the audit trail with a specified logger.
func NewActivityLogWithLogger(store ActivityStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ActivityLog {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ActivityLog{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

// RecordBooking appends an entry for a booking.
func (l *ActivityLog) RecordBooking(ctx context.Context, action domain.ActionType, b domain.Booking, actor domain.Actor) {
	if l == nil {
		return
	}
	l.record(ctx, domain.BookingSnapshot(action, b, actor, l.now()))
}

// RecordEvent appends an entry for an event.
func (l *ActivityLog) RecordEvent(ctx context.Context, action domain.ActionType, e domain.Event, actor domain.Actor) {
	if l == nil {
		return
	}
	l.record(ctx, domain.EventSnapshot(action, e, actor, l.now()))
}

func (l *ActivityLog) record(ctx context.Context, entry domain.ActivityEntry) {
	if l.store == nil {
		return
	}
	entry.ID = l.idGenerator()
	if err := l.store.AppendActivity(ctx, entry); err != nil {
		serviceLogger(ctx, l.logger, "ActivityLog", "Record",
			"record_id", entry.RecordID,
			"action", string(entry.ActionType),
		).WarnContext(ctx, "failed to record activity", "error", err, "error_kind", ErrorKind(mapRepoError(err)))
	}
}

// List returns entries newest first.
func (l *ActivityLog) List(ctx context.Context, filter persistence.ActivityFilter) (entries []domain.ActivityEntry, err error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	logger := serviceLogger(ctx, l.logger, "ActivityLog", "List", "action", string(filter.ActionType))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list activity", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(entries)).DebugContext(ctx, "activity listed")
	}()

	if filter.ActionType != "" && filter.ActionType != domain.ActionAdd && filter.ActionType != domain.ActionDelete {
		vErr := &ValidationError{}
		vErr.add("actionType", "actionType must be add or delete")
		return nil, vErr
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		vErr := &ValidationError{}
		vErr.add("to", "to must not be before from")
		return nil, vErr
	}

	entries, err = l.store.ListActivity(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}
