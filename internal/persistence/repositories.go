package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
)

// BookingFilter narrows booking listings. Empty fields do not constrain.
type BookingFilter struct {
	Labs       []string
	Statuses   []domain.Status
	DateFrom   string
	DateTo     string
	ProposedBy string
	Limit      int
}

// EventFilter narrows event listings.
type EventFilter struct {
	Labs     []string
	DateFrom string
	DateTo   string
	Limit    int
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	From       time.Time
	To         time.Time
	ActionType domain.ActionType
	Limit      int
}

// BookingRepository reads and writes bookings through a DocumentStore.
type BookingRepository struct {
	store DocumentStore
}

// NewBookingRepository constructs a booking repository.
func NewBookingRepository(store DocumentStore) *BookingRepository {
	return &BookingRepository{store: store}
}

// GetBooking loads a single booking.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	rec, err := r.store.Get(ctx, CollectionBookings, id)
	if err != nil {
		return domain.Booking{}, err
	}
	return DecodeBooking(rec)
}

// ListBookingsOnDate returns every booking on the labs for a date, any status.
func (r *BookingRepository) ListBookingsOnDate(ctx context.Context, labs []string, date string) ([]domain.Booking, error) {
	if len(labs) == 0 {
		return nil, nil
	}
	return r.query(ctx, Query{
		Collection: CollectionBookings,
		Filters:    []Filter{In("lab", labs), Where("date", OpEqual, date)},
		OrderBy:    "startAt",
	})
}

// FindBookingsAt returns bookings holding the lab at startAt on date, any
// status, except excludeID. Start instants are compared after decoding, so
// rows stored with fractional seconds or an offset still match.
func (r *BookingRepository) FindBookingsAt(ctx context.Context, lab, date string, startAt time.Time, excludeID string) ([]domain.Booking, error) {
	bookings, err := r.query(ctx, Query{
		Collection: CollectionBookings,
		Filters:    []Filter{Where("lab", OpEqual, lab), Where("date", OpEqual, date)},
	})
	if err != nil {
		return nil, err
	}
	out := bookings[:0]
	for _, b := range bookings {
		if b.StartAt.Equal(startAt) && (excludeID == "" || b.ID != excludeID) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListBookings returns bookings ordered by start time. Status filtering with
// more than one status is applied after the store query so that the single
// set-membership filter stays available for labs.
func (r *BookingRepository) ListBookings(ctx context.Context, filter BookingFilter) ([]domain.Booking, error) {
	q := Query{Collection: CollectionBookings, OrderBy: "startAt"}
	if len(filter.Labs) > 0 {
		q.Filters = append(q.Filters, In("lab", filter.Labs))
	}
	if filter.DateFrom != "" {
		q.Filters = append(q.Filters, Where("date", OpGTE, filter.DateFrom))
	}
	if filter.DateTo != "" {
		q.Filters = append(q.Filters, Where("date", OpLTE, filter.DateTo))
	}
	if filter.ProposedBy != "" {
		q.Filters = append(q.Filters, Where("proposedByUserId", OpEqual, filter.ProposedBy))
	}
	if len(filter.Statuses) == 1 {
		q.Filters = append(q.Filters, Where("status", OpEqual, string(filter.Statuses[0])))
	}
	if len(filter.Statuses) <= 1 {
		q.Limit = filter.Limit
	}

	bookings, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(filter.Statuses) > 1 {
		bookings = keepStatuses(bookings, filter.Statuses)
		if filter.Limit > 0 && len(bookings) > filter.Limit {
			bookings = bookings[:filter.Limit]
		}
	}
	return bookings, nil
}

func (r *BookingRepository) query(ctx context.Context, q Query) ([]domain.Booking, error) {
	records, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(records))
	for _, rec := range records {
		b, err := DecodeBooking(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// EventRepository reads and writes events through a DocumentStore.
type EventRepository struct {
	store DocumentStore
}

// NewEventRepository constructs an event repository.
func NewEventRepository(store DocumentStore) *EventRepository {
	return &EventRepository{store: store}
}

// GetEvent loads a single event.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	rec, err := r.store.Get(ctx, CollectionEvents, id)
	if err != nil {
		return domain.Event{}, err
	}
	return DecodeEvent(rec)
}

// ListEventsOnDate returns events on the date that hold any of the labs,
// including events that hold every lab.
func (r *EventRepository) ListEventsOnDate(ctx context.Context, labs []string, date string) ([]domain.Event, error) {
	return r.query(ctx, Query{
		Collection: CollectionEvents,
		Filters:    []Filter{In("lab", withAllLabs(labs)), Where("date", OpEqual, date)},
		OrderBy:    "startAt",
	})
}

// FindEventsAt returns events on date holding the lab, or every lab, at
// startAt.
func (r *EventRepository) FindEventsAt(ctx context.Context, lab, date string, startAt time.Time, excludeID string) ([]domain.Event, error) {
	events, err := r.query(ctx, Query{
		Collection: CollectionEvents,
		Filters:    []Filter{In("lab", withAllLabs([]string{lab})), Where("date", OpEqual, date)},
	})
	if err != nil {
		return nil, err
	}
	out := events[:0]
	for _, e := range events {
		if e.StartAt.Equal(startAt) && (excludeID == "" || e.ID != excludeID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListEvents returns events in a date range ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	q := Query{Collection: CollectionEvents, OrderBy: "startAt", Limit: filter.Limit}
	if len(filter.Labs) > 0 {
		q.Filters = append(q.Filters, In("lab", withAllLabs(filter.Labs)))
	}
	if filter.DateFrom != "" {
		q.Filters = append(q.Filters, Where("date", OpGTE, filter.DateFrom))
	}
	if filter.DateTo != "" {
		q.Filters = append(q.Filters, Where("date", OpLTE, filter.DateTo))
	}
	return r.query(ctx, q)
}

func (r *EventRepository) query(ctx context.Context, q Query) ([]domain.Event, error) {
	records, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(records))
	for _, rec := range records {
		e, err := DecodeEvent(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ActivityRepository appends and lists audit entries.
type ActivityRepository struct {
	store DocumentStore
}

// NewActivityRepository constructs an activity repository.
func NewActivityRepository(store DocumentStore) *ActivityRepository {
	return &ActivityRepository{store: store}
}

// AppendActivity inserts an entry. Entries are never updated.
func (r *ActivityRepository) AppendActivity(ctx context.Context, entry domain.ActivityEntry) error {
	if entry.ID == "" {
		return errors.New("persistence: activity entry requires an id")
	}
	return Set(ctx, r.store, CollectionActivity, entry.ID, EncodeActivity(entry))
}

// ListActivity returns entries newest first.
func (r *ActivityRepository) ListActivity(ctx context.Context, filter ActivityFilter) ([]domain.ActivityEntry, error) {
	q := Query{Collection: CollectionActivity, OrderBy: "timestamp", Descending: true, Limit: filter.Limit}
	if !filter.From.IsZero() {
		q.Filters = append(q.Filters, Where("timestamp", OpGTE, FormatTime(filter.From)))
	}
	if !filter.To.IsZero() {
		q.Filters = append(q.Filters, Where("timestamp", OpLTE, FormatTime(filter.To)))
	}
	if filter.ActionType != "" {
		q.Filters = append(q.Filters, Where("actionType", OpEqual, string(filter.ActionType)))
	}

	records, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActivityEntry, 0, len(records))
	for _, rec := range records {
		a, err := DecodeActivity(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Batch groups booking and event changes that must land together.
type Batch struct {
	PutBookings    []domain.Booking
	DeleteBookings []string
	PutEvents      []domain.Event
	DeleteEvents   []string
}

// Empty reports whether the batch has nothing to write.
func (b Batch) Empty() bool {
	return len(b.PutBookings) == 0 && len(b.DeleteBookings) == 0 && len(b.PutEvents) == 0 && len(b.DeleteEvents) == 0
}

// Writes flattens the batch into store writes, deletes first.
func (b Batch) Writes() []Write {
	writes := make([]Write, 0, len(b.PutBookings)+len(b.DeleteBookings)+len(b.PutEvents)+len(b.DeleteEvents))
	for _, id := range b.DeleteBookings {
		writes = append(writes, Write{Kind: WriteDelete, Collection: CollectionBookings, ID: id})
	}
	for _, id := range b.DeleteEvents {
		writes = append(writes, Write{Kind: WriteDelete, Collection: CollectionEvents, ID: id})
	}
	for _, booking := range b.PutBookings {
		writes = append(writes, Write{Kind: WriteSet, Collection: CollectionBookings, ID: booking.ID, Doc: EncodeBooking(booking)})
	}
	for _, event := range b.PutEvents {
		writes = append(writes, Write{Kind: WriteSet, Collection: CollectionEvents, ID: event.ID, Doc: EncodeEvent(event)})
	}
	return writes
}

// Repositories bundles the typed repositories over one store.
type Repositories struct {
	Store    DocumentStore
	Bookings *BookingRepository
	Events   *EventRepository
	Activity *ActivityRepository
}

// NewRepositories wires every repository to the same store.
func NewRepositories(store DocumentStore) *Repositories {
	return &Repositories{
		Store:    store,
		Bookings: NewBookingRepository(store),
		Events:   NewEventRepository(store),
		Activity: NewActivityRepository(store),
	}
}

// ApplyBatch commits the batch atomically.
func (r *Repositories) ApplyBatch(ctx context.Context, batch Batch) error {
	if batch.Empty() {
		return nil
	}
	return r.Store.Commit(ctx, batch.Writes())
}

func withAllLabs(labs []string) []string {
	out := make([]string, 0, len(labs)+1)
	seen := false
	for _, lab := range labs {
		if lab == domain.AllLabs {
			seen = true
		}
		out = append(out, lab)
	}
	if !seen {
		out = append(out, domain.AllLabs)
	}
	return out
}

func excludeBooking(bookings []domain.Booking, excludeID string) []domain.Booking {
	if excludeID == "" {
		return bookings
	}
	out := bookings[:0]
	for _, b := range bookings {
		if b.ID != excludeID {
			out = append(out, b)
		}
	}
	return out
}

func keepStatuses(bookings []domain.Booking, statuses []domain.Status) []domain.Booking {
	allowed := make(map[domain.Status]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	out := bookings[:0]
	for _, b := range bookings {
		if _, ok := allowed[b.Status]; ok {
			out = append(out, b)
		}
	}
	return out
}
