package application

import (
	"context"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/persistence"
)

// BookingStore captures the booking queries the services need.
type BookingStore interface {
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	ListBookingsOnDate(ctx context.Context, labs []string, date string) ([]domain.Booking, error)
	FindBookingsAt(ctx context.Context, lab, date string, startAt time.Time, excludeID string) ([]domain.Booking, error)
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]domain.Booking, error)
}

// EventStore captures the event queries the services need.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	ListEventsOnDate(ctx context.Context, labs []string, date string) ([]domain.Event, error)
	FindEventsAt(ctx context.Context, lab, date string, startAt time.Time, excludeID string) ([]domain.Event, error)
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]domain.Event, error)
}

// ActivityStore appends and lists audit entries.
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry domain.ActivityEntry) error
	ListActivity(ctx context.Context, filter persistence.ActivityFilter) ([]domain.ActivityEntry, error)
}

// BatchWriter commits booking and event changes atomically.
type BatchWriter interface {
	ApplyBatch(ctx context.Context, batch persistence.Batch) error
}

// Stores bundles the persistence ports.
type Stores struct {
	Bookings BookingStore
	Events   EventStore
	Activity ActivityStore
	Batches  BatchWriter
}

// StoresFrom adapts the document-store repositories.
func StoresFrom(repos *persistence.Repositories) Stores {
	return Stores{
		Bookings: repos.Bookings,
		Events:   repos.Events,
		Activity: repos.Activity,
		Batches:  repos,
	}
}
