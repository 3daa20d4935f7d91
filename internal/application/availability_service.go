package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/example/lab-scheduler/internal/cache"
	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/scheduler"
)

// AvailabilityService answers which blocks are taken on a date.
type AvailabilityService struct {
	catalog  *catalog.Catalog
	bookings BookingStore
	events   EventStore
	cache    cache.AvailabilityCache
	logger   *slog.Logger
}

// NewAvailabilityService wires the checker. A nil cache disables caching.
func NewAvailabilityService(cat *catalog.Catalog, stores Stores, c cache.AvailabilityCache) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(cat, stores, c, nil)
}

// NewAvailabilityServiceWithLogger wires the checker with a specified logger.
func NewAvailabilityServiceWithLogger(cat *catalog.Catalog, stores Stores, c cache.AvailabilityCache, logger *slog.Logger) *AvailabilityService {
	if c == nil {
		c = cache.Nop{}
	}
	return &AvailabilityService{
		catalog:  cat,
		bookings: stores.Bookings,
		events:   stores.Events,
		cache:    c,
		logger:   defaultLogger(logger),
	}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AvailabilityService", operation, attrs...)
}

// CheckAvailability returns the block values occupied on any of the labs on
// date, in catalog order. Pending and approved bookings and every event on
// the labs or on all labs count; excludeRecordID is ignored so an edited
// record does not block itself.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, labs []string, date, excludeRecordID string) (occupied []string, err error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	ctx, span := startSpan(ctx, "AvailabilityService.CheckAvailability", attribute.String("date", date), attribute.Int("labs", len(labs)))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "CheckAvailability", "date", date, "exclude_id", excludeRecordID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("occupied_count", len(occupied)).DebugContext(ctx, "availability checked")
	}()

	vErr := &ValidationError{}
	names := canonicalLabs(s.catalog, labs, "labs", false, vErr)
	if len(names) == 0 && !vErr.HasErrors() {
		vErr.add("labs", "at least one lab is required")
	}
	date = validateDate(s.catalog, date, vErr)
	if vErr.HasErrors() {
		return nil, vErr
	}

	key := cache.Key{Date: date, Labs: names, Exclude: excludeRecordID}
	if blocks, ok := s.cache.Get(ctx, key); ok {
		return blocks, nil
	}

	occupants, err := s.occupants(ctx, names, date)
	if err != nil {
		return nil, err
	}
	set := scheduler.OccupiedBlocks(occupants, names, excludeRecordID)
	values := make([]string, 0, len(set))
	for block := range set {
		values = append(values, block)
	}
	occupied = s.catalog.SortBlocks(values)

	s.cache.Set(ctx, key, occupied)
	return occupied, nil
}

// DaySchedule lays out active bookings and events of a date over labs and
// blocks. No labs means every lab in the catalog.
func (s *AvailabilityService) DaySchedule(ctx context.Context, labs []string, date string) (day DaySchedule, err error) {
	if s == nil {
		return DaySchedule{}, fmt.Errorf("AvailabilityService is nil")
	}
	ctx, span := startSpan(ctx, "AvailabilityService.DaySchedule", attribute.String("date", date))
	defer func() { endSpan(span, err) }()

	logger := s.loggerWith(ctx, "DaySchedule", "date", date)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build day schedule", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	vErr := &ValidationError{}
	names := canonicalLabs(s.catalog, labs, "labs", false, vErr)
	if len(labs) == 0 {
		for _, lab := range s.catalog.Labs() {
			names = append(names, lab.Name)
		}
	}
	date = validateDate(s.catalog, date, vErr)
	if vErr.HasErrors() {
		return DaySchedule{}, vErr
	}

	bookings, events, err := s.load(ctx, names, date)
	if err != nil {
		return DaySchedule{}, err
	}

	bookingByID := make(map[string]domain.Booking, len(bookings))
	eventByID := make(map[string]domain.Event, len(events))
	occupants := make([]scheduler.Occupant, 0, len(bookings)+len(events))
	for _, b := range bookings {
		bookingByID[b.ID] = b
		occupants = append(occupants, bookingOccupant(b))
	}
	for _, e := range events {
		eventByID[e.ID] = e
		occupants = append(occupants, eventOccupant(e))
	}

	blocks := s.catalog.Blocks()
	blockValues := make([]string, len(blocks))
	for i, b := range blocks {
		blockValues[i] = b.Value
	}

	grid := scheduler.BuildGrid(names, blockValues, occupants)
	cells := make([]ScheduleCell, len(grid))
	for i, cell := range grid {
		out := ScheduleCell{Lab: cell.Lab, Block: cell.Block}
		for _, occ := range cell.Occupants {
			switch occ.Source {
			case scheduler.SourceBooking:
				out.Bookings = append(out.Bookings, bookingByID[occ.ID])
			case scheduler.SourceEvent:
				out.Events = append(out.Events, eventByID[occ.ID])
			}
		}
		cells[i] = out
	}

	return DaySchedule{Date: date, Labs: names, Blocks: blocks, Cells: cells}, nil
}

// InvalidateDate drops cached lookups of a date. Services call it after every write.
func (s *AvailabilityService) InvalidateDate(ctx context.Context, dates ...string) {
	if s == nil {
		return
	}
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		s.cache.InvalidateDate(ctx, d)
	}
}

func (s *AvailabilityService) occupants(ctx context.Context, labs []string, date string) ([]scheduler.Occupant, error) {
	bookings, events, err := s.load(ctx, labs, date)
	if err != nil {
		return nil, err
	}
	occupants := make([]scheduler.Occupant, 0, len(bookings)+len(events))
	for _, b := range bookings {
		occupants = append(occupants, bookingOccupant(b))
	}
	for _, e := range events {
		occupants = append(occupants, eventOccupant(e))
	}
	return occupants, nil
}

// load reads active bookings and events of the date concurrently.
func (s *AvailabilityService) load(ctx context.Context, labs []string, date string) ([]domain.Booking, []domain.Event, error) {
	var (
		bookings []domain.Booking
		events   []domain.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := s.bookings.ListBookingsOnDate(gctx, labs, date)
		if err != nil {
			return mapRepoError(err)
		}
		for _, b := range found {
			if b.Status.Active() {
				bookings = append(bookings, b)
			}
		}
		return nil
	})
	g.Go(func() error {
		found, err := s.events.ListEventsOnDate(gctx, labs, date)
		if err != nil {
			return mapRepoError(err)
		}
		events = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return bookings, events, nil
}

func bookingOccupant(b domain.Booking) scheduler.Occupant {
	return scheduler.Occupant{
		ID:     b.ID,
		Source: scheduler.SourceBooking,
		Lab:    b.Lab,
		Blocks: b.TimeBlocks,
		Start:  b.StartAt,
		End:    b.EndAt,
	}
}

func eventOccupant(e domain.Event) scheduler.Occupant {
	lab := e.Lab
	if strings.EqualFold(lab, domain.AllLabs) {
		lab = scheduler.AllLabs
	}
	return scheduler.Occupant{
		ID:     e.ID,
		Source: scheduler.SourceEvent,
		Lab:    lab,
		Blocks: e.TimeBlocks,
		Start:  e.StartAt,
		End:    e.EndAt,
	}
}
