package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/scheduler"
	"github.com/example/lab-scheduler/internal/workflow"
)

const defaultCheckConcurrency = 8

// ProposalService resolves and submits multi-lab, multi-block proposals.
type ProposalService struct {
	catalog     *catalog.Catalog
	bookings    BookingStore
	events      EventStore
	batches     BatchWriter
	collab      Collaborators
	concurrency int
}

// NewProposalService wires the conflict resolver.
func NewProposalService(cat *catalog.Catalog, stores Stores, collab Collaborators) *ProposalService {
	return &ProposalService{
		catalog:     cat,
		bookings:    stores.Bookings,
		events:      stores.Events,
		batches:     stores.Batches,
		collab:      collab.withDefaults(),
		concurrency: defaultCheckConcurrency,
	}
}

func (s *ProposalService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.collab.Logger, "ProposalService", operation, attrs...)
}

// proposalPlan is a validated proposal with its candidates in block-major,
// lab-minor order.
type proposalPlan struct {
	date       string
	labs       []string
	blocks     []string
	exclude    string
	candidates []domain.Booking
}

// ResolveProposal checks every lab × block candidate against existing
// bookings of any status and against events. It never writes.
func (s *ProposalService) ResolveProposal(ctx context.Context, req ProposalRequest) (res Resolution, err error) {
	if s == nil {
		return Resolution{}, fmt.Errorf("ProposalService is nil")
	}
	ctx, span := startSpan(ctx, "ProposalService.ResolveProposal", attribute.String("date", req.Date))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "ResolveProposal", "date", req.Date)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to resolve proposal", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("clean_count", len(res.Clean), "conflict_count", len(res.Conflicts)).InfoContext(ctx, "proposal resolved")
	}()

	plan, err := s.plan(req)
	if err != nil {
		return Resolution{}, err
	}
	return s.resolve(ctx, plan)
}

// SubmitProposal resolves the proposal again and persists it in one atomic
// batch according to the policy. Notifications and activity entries follow
// the commit and never undo it.
func (s *ProposalService) SubmitProposal(ctx context.Context, req SubmitRequest) (result SubmitResult, err error) {
	if s == nil {
		return SubmitResult{}, fmt.Errorf("ProposalService is nil")
	}
	ctx, span := startSpan(ctx, "ProposalService.SubmitProposal",
		attribute.String("date", req.Proposal.Date),
		attribute.String("policy", string(req.Policy)),
		attribute.String("actor_role", string(req.Actor.Role)),
	)
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "SubmitProposal",
		"date", req.Proposal.Date,
		"policy", string(req.Policy),
		"actor_id", req.Actor.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit proposal", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"created_count", len(result.Created),
			"replaced_count", len(result.Replaced),
			"skipped_count", len(result.Skipped),
			"failed_deliveries", notify.Failed(result.Deliveries),
		).InfoContext(ctx, "proposal submitted")
	}()

	if err := validateActor(req.Actor); err != nil {
		return SubmitResult{}, err
	}
	if !req.Policy.Valid() {
		vErr := &ValidationError{}
		vErr.add("policy", "policy must be ignore or replace")
		return SubmitResult{}, vErr
	}
	if req.Policy == PolicyReplace {
		if err := workflow.CanReplace(req.Actor); err != nil {
			return SubmitResult{}, mapRepoError(err)
		}
	}
	if s.batches == nil {
		return SubmitResult{}, fmt.Errorf("batch writer not configured")
	}

	plan, err := s.plan(req.Proposal)
	if err != nil {
		return SubmitResult{}, err
	}
	res, err := s.resolve(ctx, plan)
	if err != nil {
		return SubmitResult{}, err
	}

	var (
		toCreate []domain.Booking
		batch    persistence.Batch
	)
	switch req.Policy {
	case PolicyAbort:
		if len(res.Conflicts) > 0 {
			return SubmitResult{}, &ConflictError{Reports: res.Conflicts}
		}
		toCreate = res.Clean
	case PolicyIgnore:
		toCreate = res.Clean
		result.Skipped = res.Conflicts
	case PolicyReplace:
		toCreate = append(toCreate, res.Clean...)
		seen := make(map[string]struct{})
		for _, report := range res.Conflicts {
			toCreate = append(toCreate, report.Candidate)
			for _, rec := range report.Records() {
				if _, dup := seen[rec.ID()]; dup {
					continue
				}
				seen[rec.ID()] = struct{}{}
				result.Replaced = append(result.Replaced, rec)
				switch rec.Source {
				case scheduler.SourceBooking:
					batch.DeleteBookings = append(batch.DeleteBookings, rec.ID())
				case scheduler.SourceEvent:
					batch.DeleteEvents = append(batch.DeleteEvents, rec.ID())
				}
			}
		}
	}

	status := workflow.InitialStatus(req.Actor)
	createdAt := s.collab.Now()
	for _, candidate := range toCreate {
		b := candidate.Clone()
		b.ID = s.collab.IDGenerator()
		b.Status = status
		b.ProposedByUserID = req.Actor.UserID
		b.ProposedByName = req.Actor.DisplayName
		b.CreatedAt = createdAt
		b.UpdatedAt = createdAt
		batch.PutBookings = append(batch.PutBookings, b)
	}
	if batch.Empty() {
		return result, nil
	}

	if err := s.batches.ApplyBatch(ctx, batch); err != nil {
		return SubmitResult{}, mapRepoError(err)
	}
	result.Created = batch.PutBookings
	s.collab.invalidate(ctx, plan.date)

	for _, rec := range result.Replaced {
		switch {
		case rec.Booking != nil:
			result.Deliveries = append(result.Deliveries, s.collab.notifyBooking(ctx, *rec.Booking, notify.BookingDeleted, req.Actor)...)
			s.collab.Activity.RecordBooking(ctx, domain.ActionDelete, *rec.Booking, req.Actor)
		case rec.Event != nil:
			result.Deliveries = append(result.Deliveries, s.collab.notifyEvent(ctx, *rec.Event, notify.EventDeleted, req.Actor)...)
			s.collab.Activity.RecordEvent(ctx, domain.ActionDelete, *rec.Event, req.Actor)
		}
	}
	for _, b := range result.Created {
		lc := notify.BookingAdded
		if b.Status == domain.StatusPending {
			lc = notify.ProposalPending
		}
		result.Deliveries = append(result.Deliveries, s.collab.notifyBooking(ctx, b, lc, req.Actor)...)
		s.collab.Activity.RecordBooking(ctx, domain.ActionAdd, b, req.Actor)
	}

	return result, nil
}

func (s *ProposalService) plan(req ProposalRequest) (proposalPlan, error) {
	vErr := &ValidationError{}

	refs := append([]string(nil), req.Labs...)
	for i, group := range req.LabGroups {
		for _, ref := range group.Labs {
			if group.LabType != "" {
				if labType, ok := s.catalog.LabType(ref); ok && labType != group.LabType {
					vErr.add("labGroups", fmt.Sprintf("group %d: lab %q is not of type %s", i+1, ref, group.LabType))
				}
			}
			refs = append(refs, ref)
		}
	}
	labs := canonicalLabs(s.catalog, refs, "labs", false, vErr)
	if len(labs) == 0 && !vErr.HasErrors() {
		vErr.add("labs", "at least one lab is required")
	}

	blocks := canonicalBlocks(s.catalog, req.TimeBlocks, vErr)
	if len(blocks) == 0 && !vErr.HasErrors() {
		vErr.add("timeBlocks", "at least one time block is required")
	}

	date := validateDate(s.catalog, req.Date, vErr)
	draft := s.validateDraft(req.Draft, vErr)

	if vErr.HasErrors() {
		return proposalPlan{}, vErr
	}

	plan := proposalPlan{date: date, labs: labs, blocks: blocks, exclude: req.ExcludeRecordID}
	for _, block := range blocks {
		start, end, err := s.catalog.Resolve(date, block)
		if err != nil {
			vErr.add("timeBlocks", err.Error())
			return proposalPlan{}, vErr
		}
		for _, lab := range labs {
			b := domain.Booking{
				Subject:               draft.Subject,
				ActivityType:          draft.ActivityType,
				Courses:               append([]string(nil), draft.Courses...),
				Lab:                   lab,
				Date:                  date,
				TimeBlocks:            []string{block},
				StartAt:               start,
				EndAt:                 end,
				Notes:                 draft.Notes,
				AssignedTechnicianIDs: append([]string(nil), draft.AssignedTechnicianIDs...),
			}
			plan.candidates = append(plan.candidates, b)
		}
	}
	return plan, nil
}

func (s *ProposalService) validateDraft(draft BookingDraft, vErr *ValidationError) BookingDraft {
	draft.Subject = strings.TrimSpace(draft.Subject)
	if draft.Subject == "" {
		vErr.add("subject", "subject is required")
	}
	if draft.ActivityType == "" {
		draft.ActivityType = domain.ActivityClass
	} else if !draft.ActivityType.Valid() {
		vErr.add("activityType", "activityType must be class or review")
	}
	draft.Courses = validateCourses(s.catalog, draft.Courses, vErr)
	draft.Notes = strings.TrimSpace(draft.Notes)
	draft.AssignedTechnicianIDs = uniqueStrings(draft.AssignedTechnicianIDs)
	return draft
}

func validateCourses(cat *catalog.Catalog, courses []string, vErr *ValidationError) []string {
	known := make(map[string]string)
	for _, c := range cat.Courses() {
		known[strings.ToLower(c)] = c
	}
	var out []string
	for _, c := range uniqueStrings(courses) {
		name, ok := known[strings.ToLower(c)]
		if !ok {
			vErr.add("courses", fmt.Sprintf("unknown course %q", c))
			continue
		}
		out = append(out, name)
	}
	return sortStrings(uniqueStrings(out))
}

// resolve checks candidates concurrently; outputs keep candidate order.
func (s *ProposalService) resolve(ctx context.Context, plan proposalPlan) (Resolution, error) {
	if s.bookings == nil || s.events == nil {
		return Resolution{}, fmt.Errorf("repositories not configured")
	}

	reports := make([]*ConflictReport, len(plan.candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, candidate := range plan.candidates {
		g.Go(func() error {
			report, err := s.check(gctx, candidate, plan.exclude)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	var res Resolution
	for i, candidate := range plan.candidates {
		if reports[i] == nil {
			res.Clean = append(res.Clean, candidate)
			continue
		}
		res.Conflicts = append(res.Conflicts, *reports[i])
	}
	return res, nil
}

// check returns nil when the candidate's lab and start are free.
func (s *ProposalService) check(ctx context.Context, candidate domain.Booking, excludeID string) (*ConflictReport, error) {
	bookings, err := s.bookings.FindBookingsAt(ctx, candidate.Lab, candidate.Date, candidate.StartAt, excludeID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	events, err := s.events.FindEventsAt(ctx, candidate.Lab, candidate.Date, candidate.StartAt, excludeID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if len(bookings) == 0 && len(events) == 0 {
		return nil, nil
	}

	records := make(map[string]ConflictRecord, len(bookings)+len(events))
	occupants := make([]scheduler.Occupant, 0, len(bookings)+len(events))
	for _, b := range bookings {
		b := b
		records[string(scheduler.SourceBooking)+":"+b.ID] = ConflictRecord{Source: scheduler.SourceBooking, Booking: &b}
		occupants = append(occupants, bookingOccupant(b))
	}
	for _, e := range events {
		e := e
		records[string(scheduler.SourceEvent)+":"+e.ID] = ConflictRecord{Source: scheduler.SourceEvent, Event: &e}
		occupants = append(occupants, eventOccupant(e))
	}

	conflicts := scheduler.DetectConflicts(occupants, bookingOccupant(candidate))
	if len(conflicts) == 0 {
		return nil, nil
	}
	report := &ConflictReport{Candidate: candidate}
	for i, c := range conflicts {
		rec := records[string(c.Source)+":"+c.WithID]
		if i == 0 {
			report.Record = rec
			continue
		}
		report.Additional = append(report.Additional, rec)
	}
	return report, nil
}
