package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/testfixtures"
)

type brokenActivity struct {
	appended int
}

func (b *brokenActivity) AppendActivity(context.Context, domain.ActivityEntry) error {
	b.appended++
	return persistence.ErrUnavailable
}

func (b *brokenActivity) ListActivity(context.Context, persistence.ActivityFilter) ([]domain.ActivityEntry, error) {
	return nil, persistence.ErrUnavailable
}

func TestActivityFailureDoesNotFailTheWrite(t *testing.T) {
	t.Parallel()
	broken := &brokenActivity{}
	h := testfixtures.NewHarness(t, testfixtures.WithStores(func(s application.Stores) application.Stores {
		s.Activity = broken
		return s
	}))

	result, err := h.Proposals.SubmitProposal(context.Background(), application.SubmitRequest{
		Actor:    testfixtures.Coordinator,
		Proposal: anatomyProposal(),
	})
	if err != nil {
		t.Fatalf("SubmitProposal returned error: %v", err)
	}
	if broken.appended != 1 {
		t.Fatalf("expected one append attempt, got %d", broken.appended)
	}
	h.MustBooking(t, result.Created[0].ID)

	if _, err := h.Activity.List(context.Background(), persistence.ActivityFilter{}); !errors.Is(err, application.ErrStorageUnavailable) {
		t.Fatalf("listing surfaces storage errors, got %v", err)
	}
}

func TestActivityEntriesSnapshotTheRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := testfixtures.NewHarness(t)

	result, err := h.Proposals.SubmitProposal(ctx, application.SubmitRequest{
		Actor:    testfixtures.Technician,
		Proposal: anatomyProposal(),
	})
	if err != nil {
		t.Fatalf("SubmitProposal returned error: %v", err)
	}

	entries, err := h.Activity.List(ctx, persistence.ActivityFilter{ActionType: domain.ActionAdd})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.RecordID != result.Created[0].ID || e.Lab != "Anatomy 1" || e.Block != "07:00-09:10" || e.Date != "2025-11-25" {
		t.Fatalf("unexpected snapshot %+v", e)
	}
	if e.ActorUserID != testfixtures.Technician.UserID || e.ActorName != testfixtures.Technician.DisplayName {
		t.Fatalf("unexpected actor in %+v", e)
	}
	if !e.Timestamp.Equal(testfixtures.ReferenceTime()) {
		t.Fatalf("expected the harness clock, got %v", e.Timestamp)
	}
}

func TestActivityListValidation(t *testing.T) {
	t.Parallel()
	h := testfixtures.NewHarness(t)
	var vErr *application.ValidationError

	_, err := h.Activity.List(context.Background(), persistence.ActivityFilter{ActionType: "update"})
	if !errors.As(err, &vErr) || vErr.FieldErrors["actionType"] == "" {
		t.Fatalf("expected actionType error, got %v", err)
	}
	now := testfixtures.ReferenceTime()
	_, err = h.Activity.List(context.Background(), persistence.ActivityFilter{From: now, To: now.Add(-time.Hour)})
	if !errors.As(err, &vErr) || vErr.FieldErrors["to"] == "" {
		t.Fatalf("expected range error, got %v", err)
	}
}

func TestNilActivityLogIsSafe(t *testing.T) {
	t.Parallel()
	var log *application.ActivityLog
	log.RecordBooking(context.Background(), domain.ActionAdd, domain.Booking{}, testfixtures.Coordinator)
	entries, err := log.List(context.Background(), persistence.ActivityFilter{})
	if err != nil || entries != nil {
		t.Fatalf("nil log should list nothing, got %v, %v", entries, err)
	}
}
