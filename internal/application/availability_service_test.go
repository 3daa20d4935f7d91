package application_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/cache"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/testfixtures"
)

func TestCheckAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t,
		testfixtures.BookingFixture{ID: "b1", Block: "13:00-15:10"},
		testfixtures.BookingFixture{ID: "b2", Lab: "Anatomy 2", Block: "07:00-09:10", Status: domain.StatusPending},
		testfixtures.BookingFixture{ID: "b3", Block: "18:30-20:10", Status: domain.StatusRejected},
		testfixtures.BookingFixture{ID: "other-day", Date: "2025-11-26", Block: "09:30-12:00"},
	)
	h.SeedEvents(t, testfixtures.EventFixture{ID: "e1", Date: "2025-11-25", Block: "20:30-22:00"})

	tests := []struct {
		name    string
		labs    []string
		exclude string
		want    []string
	}{
		{name: "one lab", labs: []string{"Anatomy 1"}, want: []string{"13:00-15:10", "20:30-22:00"}},
		{name: "union over labs", labs: []string{"Anatomy 1", "anatomy-2"}, want: []string{"07:00-09:10", "13:00-15:10", "20:30-22:00"}},
		{name: "excluded record", labs: []string{"Anatomy 1"}, exclude: "b1", want: []string{"20:30-22:00"}},
		{name: "only all-lab event", labs: []string{"Chemistry 1"}, want: []string{"20:30-22:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := h.Availability.CheckAvailability(ctx, tt.labs, "2025-11-25", tt.exclude)
			if err != nil {
				t.Fatalf("CheckAvailability returned error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("occupied = %v, want %v", got, tt.want)
			}
		})
	}

	_, err := h.Availability.CheckAvailability(ctx, nil, "2025-11-25", "")
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["labs"] == "" {
		t.Fatalf("expected labs validation error, got %v", err)
	}
}

func TestCheckAvailabilityIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t, testfixtures.BookingFixture{ID: "b1"})

	first, err := h.Availability.CheckAvailability(ctx, []string{"Anatomy 1"}, "2025-11-25", "")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := h.Availability.CheckAvailability(ctx, []string{"Anatomy 1"}, "2025-11-25", "")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !slices.Equal(first, second) {
		t.Fatalf("results differ: %v vs %v", first, second)
	}

	free, err := h.Availability.CheckAvailability(ctx, []string{"Anatomy 2"}, "2025-11-25", "")
	if err != nil {
		t.Fatalf("free check: %v", err)
	}
	if free == nil || len(free) != 0 {
		t.Fatalf("a free lab yields an empty, non-nil list, got %#v", free)
	}
}

func TestCheckAvailabilityCacheIsInvalidatedByWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := cache.NewLocal(time.Minute)
	h := testfixtures.NewHarness(t, testfixtures.WithCache(local))

	before, err := h.Availability.CheckAvailability(ctx, []string{"Anatomy 1"}, "2025-11-25", "")
	if err != nil || len(before) != 0 {
		t.Fatalf("expected free lab, got %v, %v", before, err)
	}
	if local.Len() != 1 {
		t.Fatalf("expected the lookup to be cached")
	}

	if _, err := h.Proposals.SubmitProposal(ctx, application.SubmitRequest{Actor: testfixtures.Coordinator, Proposal: anatomyProposal()}); err != nil {
		t.Fatalf("SubmitProposal returned error: %v", err)
	}

	after, err := h.Availability.CheckAvailability(ctx, []string{"Anatomy 1"}, "2025-11-25", "")
	if err != nil {
		t.Fatalf("CheckAvailability returned error: %v", err)
	}
	if !slices.Equal(after, []string{"07:00-09:10"}) {
		t.Fatalf("stale availability after write: %v", after)
	}
}

func TestDaySchedule(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t,
		testfixtures.BookingFixture{ID: "b1"},
		testfixtures.BookingFixture{ID: "b2", Block: "09:30-12:00", Status: domain.StatusRejected},
	)
	h.SeedEvents(t, testfixtures.EventFixture{ID: "e1", Date: "2025-11-25", Block: "13:00-15:10"})

	day, err := h.Availability.DaySchedule(context.Background(), nil, "2025-11-25")
	if err != nil {
		t.Fatalf("DaySchedule returned error: %v", err)
	}
	labs := len(h.Catalog.Labs())
	if len(day.Labs) != labs || len(day.Blocks) != 6 || len(day.Cells) != labs*6 {
		t.Fatalf("unexpected grid shape: %d labs, %d blocks, %d cells", len(day.Labs), len(day.Blocks), len(day.Cells))
	}

	cells := map[string]application.ScheduleCell{}
	for _, c := range day.Cells {
		cells[c.Lab+"|"+c.Block] = c
	}
	if c := cells["Anatomy 1|07:00-09:10"]; len(c.Bookings) != 1 || c.Bookings[0].ID != "b1" {
		t.Fatalf("expected b1 in its cell, got %+v", c)
	}
	if c := cells["Anatomy 1|09:30-12:00"]; !c.Free() {
		t.Fatalf("rejected bookings do not occupy a cell, got %+v", c)
	}
	for _, lab := range day.Labs {
		if c := cells[lab+"|13:00-15:10"]; len(c.Events) != 1 || c.Events[0].ID != "e1" {
			t.Fatalf("all-lab event missing for %s: %+v", lab, c)
		}
	}
}

// flakyBookings fails every booking lookup.
type flakyBookings struct {
	application.BookingStore
}

func (flakyBookings) ListBookingsOnDate(context.Context, []string, string) ([]domain.Booking, error) {
	return nil, persistence.ErrUnavailable
}

func TestCheckAvailabilityStorageFailure(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t, testfixtures.WithStores(func(s application.Stores) application.Stores {
		s.Bookings = flakyBookings{s.Bookings}
		return s
	}))

	_, err := h.Availability.CheckAvailability(context.Background(), []string{"Anatomy 1"}, "2025-11-25", "")
	if !errors.Is(err, application.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
