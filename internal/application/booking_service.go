package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/workflow"
)

// BookingService applies approval transitions, edits and deletes to
// existing bookings.
type BookingService struct {
	catalog   *catalog.Catalog
	bookings  BookingStore
	batches   BatchWriter
	proposals *ProposalService
	collab    Collaborators
}

// NewBookingService wires the approval workflow. The proposal service
// re-checks conflicts when an edit moves a booking.
func NewBookingService(cat *catalog.Catalog, stores Stores, proposals *ProposalService, collab Collaborators) *BookingService {
	return &BookingService{
		catalog:   cat,
		bookings:  stores.Bookings,
		batches:   stores.Batches,
		proposals: proposals,
		collab:    collab.withDefaults(),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.collab.Logger, "BookingService", operation, attrs...)
}

// GetBooking loads one booking.
func (s *BookingService) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	if s == nil {
		return domain.Booking{}, fmt.Errorf("BookingService is nil")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Booking{}, ErrNotFound
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, mapRepoError(err)
	}
	return b, nil
}

// ListBookings returns bookings ordered by start time.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []domain.Booking, err error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	logger := s.loggerWith(ctx, "ListBookings", "period", string(params.Period))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	vErr := &ValidationError{}
	filter := persistence.BookingFilter{
		Labs:       canonicalLabs(s.catalog, params.Labs, "labs", false, vErr),
		DateFrom:   strings.TrimSpace(params.DateFrom),
		DateTo:     strings.TrimSpace(params.DateTo),
		ProposedBy: params.ProposedBy,
		Limit:      params.Limit,
	}
	for _, st := range params.Statuses {
		if !st.Valid() {
			vErr.add("status", fmt.Sprintf("unknown status %q", st))
			continue
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	applyPeriod(s.catalog, params.Period, params.PeriodReference, &filter.DateFrom, &filter.DateTo, vErr)
	validateRange(s.catalog, filter.DateFrom, filter.DateTo, vErr)
	if params.Limit < 0 {
		vErr.add("limit", "limit must not be negative")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	found, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	bookings = append([]domain.Booking(nil), found...)
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].StartAt.Equal(bookings[j].StartAt) {
			return bookings[i].Lab < bookings[j].Lab
		}
		return bookings[i].StartAt.Before(bookings[j].StartAt)
	})
	return bookings, nil
}

// Approve moves a pending booking to approved and tells the lab's channels.
func (s *BookingService) Approve(ctx context.Context, actor domain.Actor, id string) (BookingResult, error) {
	return s.decide(ctx, "Approve", actor, id, workflow.TransitionApprove, notify.BookingApproved)
}

// Reject moves a pending booking to rejected and tells the pending-review channel.
func (s *BookingService) Reject(ctx context.Context, actor domain.Actor, id string) (BookingResult, error) {
	return s.decide(ctx, "Reject", actor, id, workflow.TransitionReject, notify.ProposalRejected)
}

func (s *BookingService) decide(ctx context.Context, operation string, actor domain.Actor, id string, t workflow.Transition, lc notify.Lifecycle) (result BookingResult, err error) {
	if s == nil {
		return BookingResult{}, fmt.Errorf("BookingService is nil")
	}
	ctx, span := startSpan(ctx, "BookingService."+operation, attribute.String("booking_id", id))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, operation, "booking_id", id, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to "+strings.ToLower(operation)+" booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(result.Booking.Status), "failed_deliveries", notify.Failed(result.Deliveries)).
			InfoContext(ctx, "booking "+string(result.Booking.Status))
	}()

	if err := validateActor(actor); err != nil {
		return BookingResult{}, err
	}
	if !actor.IsCoordinator() {
		return BookingResult{}, fmt.Errorf("%w: %s requires coordinator", ErrForbidden, t)
	}

	existing, err := s.GetBooking(ctx, id)
	if err != nil {
		return BookingResult{}, err
	}
	next, err := workflow.Decide(ctx, actor, existing.Status, t)
	if err != nil {
		return BookingResult{}, mapRepoError(err)
	}

	updated := existing.Clone()
	updated.Status = next
	updated.UpdatedAt = s.collab.Now()
	if err := s.batches.ApplyBatch(ctx, persistence.Batch{PutBookings: []domain.Booking{updated}}); err != nil {
		return BookingResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, updated.Date)

	return BookingResult{
		Booking:    updated,
		Deliveries: s.collab.notifyBooking(ctx, updated, lc, actor),
	}, nil
}

// EditBooking changes a booking's fields. Moving it to another lab, date or
// block re-runs the conflict check against everything but itself.
func (s *BookingService) EditBooking(ctx context.Context, params EditBookingParams) (result BookingResult, err error) {
	if s == nil {
		return BookingResult{}, fmt.Errorf("BookingService is nil")
	}
	ctx, span := startSpan(ctx, "BookingService.EditBooking",
		attribute.String("booking_id", params.BookingID),
		attribute.Bool("approve", params.Approve),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "EditBooking", "booking_id", params.BookingID, "actor_id", params.Actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to edit booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", string(result.Booking.Status)).InfoContext(ctx, "booking edited")
	}()

	actor := params.Actor
	if err := validateActor(actor); err != nil {
		return BookingResult{}, err
	}
	if params.Approve && !actor.IsCoordinator() {
		return BookingResult{}, fmt.Errorf("%w: approving requires coordinator", ErrForbidden)
	}

	existing, err := s.GetBooking(ctx, params.BookingID)
	if err != nil {
		return BookingResult{}, err
	}
	if err := workflow.CanEdit(actor, existing); err != nil {
		return BookingResult{}, mapRepoError(err)
	}

	updated, moved, err := s.applyChanges(existing, params.Changes)
	if err != nil {
		return BookingResult{}, err
	}

	if moved && s.proposals != nil {
		plan := proposalPlan{
			date:       updated.Date,
			labs:       []string{updated.Lab},
			blocks:     updated.TimeBlocks,
			exclude:    existing.ID,
			candidates: []domain.Booking{updated},
		}
		res, err := s.proposals.resolve(ctx, plan)
		if err != nil {
			return BookingResult{}, err
		}
		if len(res.Conflicts) > 0 {
			return BookingResult{}, &ConflictError{Reports: res.Conflicts}
		}
	}

	promoted := false
	if params.Approve && updated.Status != domain.StatusApproved {
		next, err := workflow.Decide(ctx, actor, updated.Status, workflow.TransitionConfirm)
		if err != nil {
			return BookingResult{}, mapRepoError(err)
		}
		updated.Status = next
		promoted = true
	}
	updated.UpdatedAt = s.collab.Now()

	if err := s.batches.ApplyBatch(ctx, persistence.Batch{PutBookings: []domain.Booking{updated}}); err != nil {
		return BookingResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, existing.Date, updated.Date)

	lc := notify.BookingEdited
	if promoted {
		lc = notify.BookingApproved
	}
	return BookingResult{
		Booking:    updated,
		Deliveries: s.collab.notifyBooking(ctx, updated, lc, actor),
	}, nil
}

func (s *BookingService) applyChanges(existing domain.Booking, changes BookingChanges) (domain.Booking, bool, error) {
	vErr := &ValidationError{}
	updated := existing.Clone()

	if changes.Subject != nil {
		updated.Subject = strings.TrimSpace(*changes.Subject)
		if updated.Subject == "" {
			vErr.add("subject", "subject is required")
		}
	}
	if changes.ActivityType != nil {
		if !changes.ActivityType.Valid() {
			vErr.add("activityType", "activityType must be class or review")
		}
		updated.ActivityType = *changes.ActivityType
	}
	if changes.Courses != nil {
		updated.Courses = validateCourses(s.catalog, *changes.Courses, vErr)
	}
	if changes.Notes != nil {
		updated.Notes = strings.TrimSpace(*changes.Notes)
	}
	if changes.AssignedTechnicianIDs != nil {
		updated.AssignedTechnicianIDs = uniqueStrings(*changes.AssignedTechnicianIDs)
	}
	if changes.Lab != nil {
		labs := canonicalLabs(s.catalog, []string{*changes.Lab}, "lab", false, vErr)
		if len(labs) == 1 {
			updated.Lab = labs[0]
		} else if !vErr.HasErrors() {
			vErr.add("lab", "lab is required")
		}
	}
	if changes.Date != nil {
		updated.Date = validateDate(s.catalog, *changes.Date, vErr)
	}
	if changes.TimeBlock != nil {
		blocks := canonicalBlocks(s.catalog, []string{*changes.TimeBlock}, vErr)
		if len(blocks) == 1 {
			updated.TimeBlocks = blocks
		} else if !vErr.HasErrors() {
			vErr.add("timeBlocks", "time block is required")
		}
	}
	if vErr.HasErrors() {
		return domain.Booking{}, false, vErr
	}

	moved := updated.Lab != existing.Lab || updated.Date != existing.Date || updated.Block() != existing.Block()
	if moved {
		start, end, err := s.catalog.Resolve(updated.Date, updated.Block())
		if err != nil {
			vErr.add("timeBlocks", err.Error())
			return domain.Booking{}, false, vErr
		}
		updated.StartAt, updated.EndAt = start, end
		updated.TimeBlocks = []string{updated.Block()}
	}
	return updated, moved, nil
}

// DeleteBooking removes a booking. Technicians may only delete their own
// pending bookings.
func (s *BookingService) DeleteBooking(ctx context.Context, actor domain.Actor, id string) (result BookingResult, err error) {
	if s == nil {
		return BookingResult{}, fmt.Errorf("BookingService is nil")
	}
	ctx, span := startSpan(ctx, "BookingService.DeleteBooking", attribute.String("booking_id", id))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "DeleteBooking", "booking_id", id, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking deleted")
	}()

	if err := validateActor(actor); err != nil {
		return BookingResult{}, err
	}
	existing, err := s.GetBooking(ctx, id)
	if err != nil {
		return BookingResult{}, err
	}
	if err := workflow.CanDelete(actor, existing); err != nil {
		return BookingResult{}, mapRepoError(err)
	}

	if err := s.batches.ApplyBatch(ctx, persistence.Batch{DeleteBookings: []string{existing.ID}}); err != nil {
		return BookingResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, existing.Date)
	s.collab.Activity.RecordBooking(ctx, domain.ActionDelete, existing, actor)

	return BookingResult{
		Booking:    existing,
		Deliveries: s.collab.notifyBooking(ctx, existing, notify.BookingDeleted, actor),
	}, nil
}
