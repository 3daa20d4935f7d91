package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/recurrence"
	"github.com/example/lab-scheduler/internal/workflow"
)

// EventService manages administrative events. Events take precedence over
// bookings, so creating one over an active booking succeeds and reports a
// ShadowWarning instead of failing.
type EventService struct {
	catalog  *catalog.Catalog
	bookings BookingStore
	events   EventStore
	batches  BatchWriter
	collab   Collaborators
}

// NewEventService wires event management.
func NewEventService(cat *catalog.Catalog, stores Stores, collab Collaborators) *EventService {
	return &EventService{
		catalog:  cat,
		bookings: stores.Bookings,
		events:   stores.Events,
		batches:  stores.Batches,
		collab:   collab.withDefaults(),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.collab.Logger, "EventService", operation, attrs...)
}

// CreateEvents creates one event per lab × block in a single batch.
func (s *EventService) CreateEvents(ctx context.Context, params CreateEventsParams) (result EventsResult, err error) {
	if s == nil {
		return EventsResult{}, fmt.Errorf("EventService is nil")
	}
	ctx, span := startSpan(ctx, "EventService.CreateEvents", attribute.String("date", params.Input.Date))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "CreateEvents", "date", params.Input.Date, "actor_id", params.Actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("created_count", len(result.Events), "warning_count", len(result.Warnings)).InfoContext(ctx, "events created")
	}()

	if err := s.authorize(params.Actor); err != nil {
		return EventsResult{}, err
	}

	input := params.Input
	vErr := &ValidationError{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	eventType := input.Type
	if eventType == "" {
		eventType = domain.EventOther
	} else if !eventType.Valid() {
		vErr.add("type", "type must be maintenance, holiday, institutional or other")
	}
	labs := canonicalLabs(s.catalog, input.Labs, "labs", true, vErr)
	if len(labs) == 0 && !vErr.HasErrors() {
		vErr.add("labs", "at least one lab is required")
	}
	for _, lab := range labs {
		if lab == domain.AllLabs && len(labs) > 1 {
			vErr.add("labs", "\"All\" cannot be combined with specific labs")
		}
	}
	blocks := canonicalBlocks(s.catalog, input.TimeBlocks, vErr)
	if len(blocks) == 0 && !vErr.HasErrors() {
		vErr.add("timeBlocks", "at least one time block is required")
	}
	date := validateDate(s.catalog, input.Date, vErr)
	if vErr.HasErrors() {
		return EventsResult{}, vErr
	}
	dates := []string{date}
	if input.Repeat != nil {
		expanded, err := recurrence.NewEngine(s.catalog.Location()).Dates(date, *input.Repeat)
		if err != nil {
			vErr.add("repeat", err.Error())
			return EventsResult{}, vErr
		}
		if len(expanded) == 0 {
			vErr.add("repeat", "repeat selects no dates")
			return EventsResult{}, vErr
		}
		dates = expanded
	}

	now := s.collab.Now()
	var batch persistence.Batch
	for _, day := range dates {
		for _, block := range blocks {
			start, end, err := s.catalog.Resolve(day, block)
			if err != nil {
				return EventsResult{}, err
			}
			batch.PutEvents = append(batch.PutEvents, s.newEvents(params.Actor, input, title, eventType, labs, day, block, start, end, now)...)
		}
	}

	if err := s.batches.ApplyBatch(ctx, batch); err != nil {
		return EventsResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, dates...)

	result.Events = batch.PutEvents
	result.Warnings = s.shadowed(ctx, result.Events)
	for _, e := range result.Events {
		result.Deliveries = append(result.Deliveries, s.collab.notifyEvent(ctx, e, notify.EventAdded, params.Actor)...)
		s.collab.Activity.RecordEvent(ctx, domain.ActionAdd, e, params.Actor)
	}
	return result, nil
}

func (s *EventService) newEvents(actor domain.Actor, input EventInput, title string, eventType domain.EventType, labs []string, date, block string, start, end, now time.Time) []domain.Event {
	out := make([]domain.Event, 0, len(labs))
	for _, lab := range labs {
		out = append(out, domain.Event{
			ID:              s.collab.IDGenerator(),
			Title:           title,
			Description:     strings.TrimSpace(input.Description),
			Type:            eventType,
			Lab:             lab,
			Date:            date,
			TimeBlocks:      []string{block},
			StartAt:         start,
			EndAt:           end,
			CreatedByUserID: actor.UserID,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return out
}

// UpdateEvent edits one event.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (result EventsResult, err error) {
	if s == nil {
		return EventsResult{}, fmt.Errorf("EventService is nil")
	}
	ctx, span := startSpan(ctx, "EventService.UpdateEvent", attribute.String("event_id", params.EventID))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "UpdateEvent", "event_id", params.EventID, "actor_id", params.Actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if err := s.authorize(params.Actor); err != nil {
		return EventsResult{}, err
	}
	existing, err := s.GetEvent(ctx, params.EventID)
	if err != nil {
		return EventsResult{}, err
	}

	updated, err := s.applyChanges(existing, params.Changes)
	if err != nil {
		return EventsResult{}, err
	}
	updated.UpdatedAt = s.collab.Now()

	if err := s.batches.ApplyBatch(ctx, persistence.Batch{PutEvents: []domain.Event{updated}}); err != nil {
		return EventsResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, existing.Date, updated.Date)

	result.Events = []domain.Event{updated}
	result.Warnings = s.shadowed(ctx, result.Events)
	result.Deliveries = s.collab.notifyEvent(ctx, updated, notify.EventEdited, params.Actor)
	return result, nil
}

func (s *EventService) applyChanges(existing domain.Event, changes EventChanges) (domain.Event, error) {
	vErr := &ValidationError{}
	updated := existing.Clone()

	if changes.Title != nil {
		updated.Title = strings.TrimSpace(*changes.Title)
		if updated.Title == "" {
			vErr.add("title", "title is required")
		}
	}
	if changes.Description != nil {
		updated.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.Type != nil {
		if !changes.Type.Valid() {
			vErr.add("type", "type must be maintenance, holiday, institutional or other")
		}
		updated.Type = *changes.Type
	}
	if changes.Lab != nil {
		labs := canonicalLabs(s.catalog, []string{*changes.Lab}, "lab", true, vErr)
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
		return domain.Event{}, vErr
	}

	if updated.Date != existing.Date || updated.Block() != existing.Block() {
		start, end, err := s.catalog.Resolve(updated.Date, updated.Block())
		if err != nil {
			vErr.add("timeBlocks", err.Error())
			return domain.Event{}, vErr
		}
		updated.StartAt, updated.EndAt = start, end
		updated.TimeBlocks = []string{updated.Block()}
	}
	return updated, nil
}

// DeleteEvent removes one event.
func (s *EventService) DeleteEvent(ctx context.Context, actor domain.Actor, id string) (result EventsResult, err error) {
	if s == nil {
		return EventsResult{}, fmt.Errorf("EventService is nil")
	}
	ctx, span := startSpan(ctx, "EventService.DeleteEvent", attribute.String("event_id", id))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "DeleteEvent", "event_id", id, "actor_id", actor.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	if err := s.authorize(actor); err != nil {
		return EventsResult{}, err
	}
	existing, err := s.GetEvent(ctx, id)
	if err != nil {
		return EventsResult{}, err
	}
	if err := s.batches.ApplyBatch(ctx, persistence.Batch{DeleteEvents: []string{existing.ID}}); err != nil {
		return EventsResult{}, mapRepoError(err)
	}
	s.collab.invalidate(ctx, existing.Date)
	s.collab.Activity.RecordEvent(ctx, domain.ActionDelete, existing, actor)

	result.Events = []domain.Event{existing}
	result.Deliveries = s.collab.notifyEvent(ctx, existing, notify.EventDeleted, actor)
	return result, nil
}

// GetEvent loads one event.
func (s *EventService) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if s == nil {
		return domain.Event{}, fmt.Errorf("EventService is nil")
	}
	if strings.TrimSpace(id) == "" {
		return domain.Event{}, ErrNotFound
	}
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, mapRepoError(err)
	}
	return e, nil
}

// ListEvents returns events ordered by start time.
func (s *EventService) ListEvents(ctx context.Context, params ListEventsParams) (events []domain.Event, err error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	logger := s.loggerWith(ctx, "ListEvents", "period", string(params.Period))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(events)).InfoContext(ctx, "events listed")
	}()

	vErr := &ValidationError{}
	filter := persistence.EventFilter{
		Labs:     canonicalLabs(s.catalog, params.Labs, "labs", false, vErr),
		DateFrom: strings.TrimSpace(params.DateFrom),
		DateTo:   strings.TrimSpace(params.DateTo),
		Limit:    params.Limit,
	}
	applyPeriod(s.catalog, params.Period, params.PeriodReference, &filter.DateFrom, &filter.DateTo, vErr)
	validateRange(s.catalog, filter.DateFrom, filter.DateTo, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	events, err = s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return events, nil
}

func (s *EventService) authorize(actor domain.Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	return mapRepoError(workflow.CanManageEvents(actor))
}

// shadowed lists active bookings sharing a lab and start with the events.
// Lookup failures only drop warnings.
func (s *EventService) shadowed(ctx context.Context, events []domain.Event) []ShadowWarning {
	if s.bookings == nil || len(events) == 0 {
		return nil
	}
	allLabs := make([]string, 0, len(s.catalog.Labs()))
	for _, lab := range s.catalog.Labs() {
		allLabs = append(allLabs, lab.Name)
	}

	byDate := make(map[string][]domain.Booking)
	var warnings []ShadowWarning
	for _, e := range events {
		bookings, ok := byDate[e.Date]
		if !ok {
			found, err := s.bookings.ListBookingsOnDate(ctx, allLabs, e.Date)
			if err != nil {
				s.loggerWith(ctx, "shadowed", "event_id", e.ID).WarnContext(ctx, "failed to look up shadowed bookings", "error", err)
				continue
			}
			bookings = found
			byDate[e.Date] = found
		}
		for _, b := range bookings {
			if !b.Status.Active() || !e.AppliesTo(b.Lab) || !b.StartAt.Equal(e.StartAt) {
				continue
			}
			warnings = append(warnings, ShadowWarning{
				EventID:   e.ID,
				BookingID: b.ID,
				Lab:       b.Lab,
				Block:     b.Block(),
				Status:    b.Status,
			})
		}
	}
	return warnings
}
