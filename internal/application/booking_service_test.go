package application_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/testfixtures"
)

func ptr[T any](v T) *T { return &v }

func TestTechnicianProposalApprovedByCoordinator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)

	submitted, err := h.Proposals.SubmitProposal(ctx, application.SubmitRequest{
		Actor:    testfixtures.Technician,
		Proposal: anatomyProposal(),
	})
	if err != nil {
		t.Fatalf("SubmitProposal returned error: %v", err)
	}
	booking := submitted.Created[0]
	if booking.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", booking.Status)
	}
	if got := h.Transport.Channels(); !slices.Equal(got, []string{notify.ChannelPendingReview}) {
		t.Fatalf("pending proposal should go to review only, got %v", got)
	}

	h.Transport.Reset()
	result, err := h.Bookings.Approve(ctx, testfixtures.Coordinator, booking.ID)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if result.Booking.Status != domain.StatusApproved {
		t.Fatalf("expected approved, got %s", result.Booking.Status)
	}
	if h.MustBooking(t, booking.ID).Status != domain.StatusApproved {
		t.Fatalf("approval must be persisted")
	}
	if got := h.Transport.Channels(); !slices.Equal(got, []string{notify.ChannelAnatomy}) {
		t.Fatalf("approval should go to the lab channel, got %v", got)
	}
}

func TestRejectRoutesToPendingReview(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t, testfixtures.BookingFixture{
		ID:         "p1",
		Lab:        "Chemistry 1",
		Status:     domain.StatusPending,
		ProposedBy: testfixtures.Technician,
	})

	result, err := h.Bookings.Reject(context.Background(), testfixtures.Coordinator, "p1")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if result.Booking.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", result.Booking.Status)
	}
	if got := h.Transport.Channels(); !slices.Equal(got, []string{notify.ChannelPendingReview}) {
		t.Fatalf("rejection should go to review only, got %v", got)
	}
}

func TestApproveRejectOnlyFromPending(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t,
		testfixtures.BookingFixture{ID: "approved", Status: domain.StatusApproved},
		testfixtures.BookingFixture{ID: "rejected", Block: "09:30-12:00", Status: domain.StatusRejected},
	)

	for _, id := range []string{"approved", "rejected"} {
		if _, err := h.Bookings.Approve(context.Background(), testfixtures.Coordinator, id); !errors.Is(err, application.ErrInvalidTransition) {
			t.Errorf("approve %s: expected invalid transition, got %v", id, err)
		}
		if _, err := h.Bookings.Reject(context.Background(), testfixtures.Coordinator, id); !errors.Is(err, application.ErrInvalidTransition) {
			t.Errorf("reject %s: expected invalid transition, got %v", id, err)
		}
	}
	if len(h.Transport.Messages()) != 0 {
		t.Fatalf("failed transitions must not notify")
	}
}

func TestTechnicianCannotDecide(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t, testfixtures.BookingFixture{ID: "p1", Status: domain.StatusPending})

	if _, err := h.Bookings.Approve(context.Background(), testfixtures.Technician, "p1"); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected forbidden approve, got %v", err)
	}
	if _, err := h.Bookings.Reject(context.Background(), testfixtures.Technician, "p1"); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected forbidden reject, got %v", err)
	}
	// Forbidden wins over not found.
	if _, err := h.Bookings.Approve(context.Background(), testfixtures.Technician, "missing"); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected forbidden for missing record, got %v", err)
	}
	if h.MustBooking(t, "p1").Status != domain.StatusPending {
		t.Fatalf("booking must stay pending")
	}
}

func TestApproveMissingBooking(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)

	if _, err := h.Bookings.Approve(context.Background(), testfixtures.Coordinator, "ghost"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("move into a taken slot conflicts", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t,
			testfixtures.BookingFixture{ID: "mine"},
			testfixtures.BookingFixture{ID: "theirs", Block: "09:30-12:00"},
		)

		_, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{
			Actor:     testfixtures.Coordinator,
			BookingID: "mine",
			Changes:   application.BookingChanges{TimeBlock: ptr("09:30-12:00")},
		})
		var conflictErr *application.ConflictError
		if !errors.As(err, &conflictErr) || conflictErr.Reports[0].Record.ID() != "theirs" {
			t.Fatalf("expected conflict with theirs, got %v", err)
		}
		if h.MustBooking(t, "mine").Block() != "07:00-09:10" {
			t.Fatalf("booking must not move")
		}
	})

	t.Run("edit in place does not conflict with itself", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t, testfixtures.BookingFixture{ID: "mine"})

		result, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{
			Actor:     testfixtures.Coordinator,
			BookingID: "mine",
			Changes:   application.BookingChanges{Subject: ptr("Neuroanatomia"), Notes: ptr("  trazer luvas ")},
		})
		if err != nil {
			t.Fatalf("EditBooking returned error: %v", err)
		}
		if result.Booking.Subject != "Neuroanatomia" || result.Booking.Notes != "trazer luvas" {
			t.Fatalf("unexpected booking %+v", result.Booking)
		}
	})

	t.Run("move to a free slot recomputes the window", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t, testfixtures.BookingFixture{ID: "mine", Technicians: []string{"tech-2"}})

		result, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{
			Actor:     testfixtures.Coordinator,
			BookingID: "mine",
			Changes:   application.BookingChanges{Lab: ptr("microscopy-2"), Date: ptr("2025-11-26"), TimeBlock: ptr("18:30-20:10")},
		})
		if err != nil {
			t.Fatalf("EditBooking returned error: %v", err)
		}
		got := h.MustBooking(t, "mine")
		wantStart := time.Date(2025, time.November, 26, 18, 30, 0, 0, testfixtures.Institution)
		if got.Lab != "Microscopy 2" || !got.StartAt.Equal(wantStart) || got.Block() != "18:30-20:10" {
			t.Fatalf("unexpected moved booking %+v", got)
		}
		channels := h.Transport.Channels()
		slices.Sort(channels)
		if !slices.Equal(channels, []string{notify.ChannelPathology, notify.UserChannel("tech-2")}) {
			t.Fatalf("unexpected edit audience %v", channels)
		}
		if len(result.Deliveries) != 2 {
			t.Fatalf("expected two deliveries, got %d", len(result.Deliveries))
		}
	})

	t.Run("approve flag promotes a rejected booking", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t, testfixtures.BookingFixture{ID: "r1", Status: domain.StatusRejected, ProposedBy: testfixtures.Technician})

		result, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{
			Actor:     testfixtures.Coordinator,
			BookingID: "r1",
			Approve:   true,
		})
		if err != nil {
			t.Fatalf("EditBooking returned error: %v", err)
		}
		if result.Booking.Status != domain.StatusApproved {
			t.Fatalf("expected approved, got %s", result.Booking.Status)
		}
		if got := h.Transport.Channels(); !slices.Equal(got, []string{notify.ChannelAnatomy}) {
			t.Fatalf("promotion should announce approval to the lab, got %v", got)
		}
	})

	t.Run("technician edits own bookings in any status", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t,
			testfixtures.BookingFixture{ID: "own", Status: domain.StatusPending, ProposedBy: testfixtures.Technician},
			testfixtures.BookingFixture{ID: "other", Block: "09:30-12:00", Status: domain.StatusPending, ProposedBy: testfixtures.Technician2},
			testfixtures.BookingFixture{ID: "done", Block: "13:00-15:10", Status: domain.StatusApproved, ProposedBy: testfixtures.Technician},
		)
		change := application.BookingChanges{Subject: ptr("Osteologia")}

		for _, id := range []string{"own", "done"} {
			result, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{Actor: testfixtures.Technician, BookingID: id, Changes: change})
			if err != nil {
				t.Fatalf("edit %s failed: %v", id, err)
			}
			if result.Booking.Subject != "Osteologia" {
				t.Fatalf("edit %s: subject not applied, got %q", id, result.Booking.Subject)
			}
		}
		if got := h.MustBooking(t, "own").Status; got != domain.StatusPending {
			t.Fatalf("own pending booking must stay pending, got %s", got)
		}
		if got := h.MustBooking(t, "done").Status; got != domain.StatusApproved {
			t.Fatalf("own approved booking must stay approved, got %s", got)
		}

		_, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{Actor: testfixtures.Technician, BookingID: "other", Changes: change})
		if !errors.Is(err, application.ErrForbidden) {
			t.Fatalf("edit of another proposer's booking: expected forbidden, got %v", err)
		}
		_, err = h.Bookings.EditBooking(ctx, application.EditBookingParams{Actor: testfixtures.Technician, BookingID: "own", Approve: true})
		if !errors.Is(err, application.ErrForbidden) {
			t.Fatalf("technician approve flag: expected forbidden, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		h := testfixtures.NewHarness(t)
		h.SeedBookings(t, testfixtures.BookingFixture{ID: "mine"})

		_, err := h.Bookings.EditBooking(ctx, application.EditBookingParams{
			Actor:     testfixtures.Coordinator,
			BookingID: "mine",
			Changes:   application.BookingChanges{Subject: ptr(" "), Lab: ptr("All")},
		})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["subject"] == "" || vErr.FieldErrors["lab"] == "" {
			t.Fatalf("expected subject and lab errors, got %v", err)
		}
	})
}

func TestDeleteBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t,
		testfixtures.BookingFixture{ID: "own", Status: domain.StatusPending, ProposedBy: testfixtures.Technician},
		testfixtures.BookingFixture{ID: "approved", Block: "09:30-12:00", ProposedBy: testfixtures.Technician},
	)

	if _, err := h.Bookings.DeleteBooking(ctx, testfixtures.Technician, "approved"); !errors.Is(err, application.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := h.Bookings.DeleteBooking(ctx, testfixtures.Technician, "own"); err != nil {
		t.Fatalf("own pending delete failed: %v", err)
	}
	if _, err := h.Bookings.DeleteBooking(ctx, testfixtures.Coordinator, "approved"); err != nil {
		t.Fatalf("coordinator delete failed: %v", err)
	}
	if _, err := h.Bookings.DeleteBooking(ctx, testfixtures.Coordinator, "approved"); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}

	entries, err := h.Activity.List(ctx, persistence.ActivityFilter{ActionType: domain.ActionDelete})
	if err != nil {
		t.Fatalf("List activity: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two delete entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Kind != domain.KindBooking || e.Lab != "Anatomy 1" {
			t.Fatalf("unexpected entry %+v", e)
		}
	}
}

func TestListBookings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)
	h.SeedBookings(t,
		testfixtures.BookingFixture{ID: "mon", Date: "2025-11-24", Lab: "Anatomy 2"},
		testfixtures.BookingFixture{ID: "tue-late", Date: "2025-11-25", Block: "13:00-15:10"},
		testfixtures.BookingFixture{ID: "tue-b", Date: "2025-11-25", Lab: "Anatomy 2"},
		testfixtures.BookingFixture{ID: "tue-a", Date: "2025-11-25", Status: domain.StatusPending, ProposedBy: testfixtures.Technician},
		testfixtures.BookingFixture{ID: "next-week", Date: "2025-12-01"},
	)
	reference := time.Date(2025, time.November, 27, 10, 0, 0, 0, testfixtures.Institution)

	ids := func(bookings []domain.Booking) []string {
		out := make([]string, len(bookings))
		for i, b := range bookings {
			out[i] = b.ID
		}
		return out
	}

	week, err := h.Bookings.ListBookings(ctx, application.ListBookingsParams{Period: application.ListPeriodWeek, PeriodReference: reference})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if got, want := ids(week), []string{"mon", "tue-a", "tue-b", "tue-late"}; !slices.Equal(got, want) {
		t.Fatalf("week listing = %v, want %v", got, want)
	}

	pending, err := h.Bookings.ListBookings(ctx, application.ListBookingsParams{Statuses: []domain.Status{domain.StatusPending}})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if got := ids(pending); !slices.Equal(got, []string{"tue-a"}) {
		t.Fatalf("pending listing = %v", got)
	}

	mine, err := h.Bookings.ListBookings(ctx, application.ListBookingsParams{ProposedBy: testfixtures.Technician.UserID, Labs: []string{"anatomy-1"}})
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if got := ids(mine); !slices.Equal(got, []string{"tue-a"}) {
		t.Fatalf("proposer listing = %v", got)
	}

	_, err = h.Bookings.ListBookings(ctx, application.ListBookingsParams{DateFrom: "2025-11-30", DateTo: "2025-11-01"})
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["to"] == "" {
		t.Fatalf("expected range validation error, got %v", err)
	}
	_, err = h.Bookings.ListBookings(ctx, application.ListBookingsParams{Period: "year"})
	if !errors.As(err, &vErr) || vErr.FieldErrors["period"] == "" {
		t.Fatalf("expected period validation error, got %v", err)
	}
}
