package domain

import "time"

// ActionType describes what happened to a record.
type ActionType string

const (
	ActionAdd    ActionType = "add"
	ActionDelete ActionType = "delete"
)

// RecordKind names the kind of record captured in an activity snapshot.
type RecordKind string

const (
	KindBooking RecordKind = "booking"
	KindEvent   RecordKind = "event"
)

// ActivityEntry is an append-only audit record of a create or delete.
type ActivityEntry struct {
	ID          string
	ActionType  ActionType
	Kind        RecordKind
	RecordID    string
	Lab         string
	Date        string
	Block       string
	Title       string
	ActorUserID string
	ActorName   string
	Timestamp   time.Time
}

// BookingSnapshot captures the audit-relevant fields of a booking.
func BookingSnapshot(action ActionType, b Booking, actor Actor, at time.Time) ActivityEntry {
	return ActivityEntry{
		ActionType:  action,
		Kind:        KindBooking,
		RecordID:    b.ID,
		Lab:         b.Lab,
		Date:        b.Date,
		Block:       b.Block(),
		Title:       b.Subject,
		ActorUserID: actor.UserID,
		ActorName:   actor.DisplayName,
		Timestamp:   at,
	}
}

// EventSnapshot captures the audit-relevant fields of an event.
func EventSnapshot(action ActionType, e Event, actor Actor, at time.Time) ActivityEntry {
	return ActivityEntry{
		ActionType:  action,
		Kind:        KindEvent,
		RecordID:    e.ID,
		Lab:         e.Lab,
		Date:        e.Date,
		Block:       e.Block(),
		Title:       e.Title,
		ActorUserID: actor.UserID,
		ActorName:   actor.DisplayName,
		Timestamp:   at,
	}
}
