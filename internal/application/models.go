package application

import (
	"time"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/recurrence"
	"github.com/example/lab-scheduler/internal/scheduler"
)

// LabGroup is one row of the proposal form: a lab type and the labs picked in it.
type LabGroup struct {
	LabType catalog.LabType
	Labs    []string
}

// BookingDraft holds the fields every candidate of a proposal shares.
type BookingDraft struct {
	Subject               string
	ActivityType          domain.ActivityType
	Courses               []string
	Notes                 string
	AssignedTechnicianIDs []string
}

// ProposalRequest describes labs × time blocks on one date.
type ProposalRequest struct {
	Labs            []string
	LabGroups       []LabGroup
	TimeBlocks      []string
	Date            string
	Draft           BookingDraft
	ExcludeRecordID string
}

// ConflictRecord is an existing booking or event a candidate collides with.
type ConflictRecord struct {
	Source  scheduler.Source
	Booking *domain.Booking
	Event   *domain.Event
}

// ID returns the id of the underlying record.
func (r ConflictRecord) ID() string {
	switch {
	case r.Booking != nil:
		return r.Booking.ID
	case r.Event != nil:
		return r.Event.ID
	}
	return ""
}

// ConflictReport pairs a candidate with what it collides with. Record is the
// record that takes precedence; events win over bookings.
type ConflictReport struct {
	Candidate  domain.Booking
	Record     ConflictRecord
	Additional []ConflictRecord
}

// Records returns Record followed by Additional.
func (r ConflictReport) Records() []ConflictRecord {
	return append([]ConflictRecord{r.Record}, r.Additional...)
}

// Resolution partitions a proposal's candidates.
type Resolution struct {
	Clean     []domain.Booking
	Conflicts []ConflictReport
}

// Total is the number of candidates resolved.
func (r Resolution) Total() int {
	return len(r.Clean) + len(r.Conflicts)
}

// Policy decides what happens to conflicting candidates on submit.
type Policy string

const (
	// PolicyAbort writes nothing when any candidate conflicts.
	PolicyAbort Policy = ""
	// PolicyIgnore persists only the clean candidates.
	PolicyIgnore Policy = "ignore"
	// PolicyReplace deletes the conflicting records and persists every candidate.
	PolicyReplace Policy = "replace"
)

// Valid reports whether the policy is known.
func (p Policy) Valid() bool {
	return p == PolicyAbort || p == PolicyIgnore || p == PolicyReplace
}

// SubmitRequest persists a proposal on behalf of an actor.
type SubmitRequest struct {
	Actor    domain.Actor
	Proposal ProposalRequest
	Policy   Policy
}

// SubmitResult reports what a submit wrote and who was told.
type SubmitResult struct {
	Created    []domain.Booking
	Replaced   []ConflictRecord
	Skipped    []ConflictReport
	Deliveries []notify.Delivery
}

// BookingChanges lists the editable booking fields. Nil fields are unchanged.
type BookingChanges struct {
	Subject               *string
	ActivityType          *domain.ActivityType
	Courses               *[]string
	Lab                   *string
	Date                  *string
	TimeBlock             *string
	Notes                 *string
	AssignedTechnicianIDs *[]string
}

// EditBookingParams wraps an edit. Approve asks for a pending or rejected
// booking to be approved in the same write and is coordinator-only.
type EditBookingParams struct {
	Actor     domain.Actor
	BookingID string
	Changes   BookingChanges
	Approve   bool
}

// BookingResult is a single written booking and its notification outcome.
type BookingResult struct {
	Booking    domain.Booking
	Deliveries []notify.Delivery
}

// ListPeriod identifies the range preset requested for listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Monday-start week containing the reference date.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference date.
	ListPeriodMonth ListPeriod = "month"
)

// ListBookingsParams narrows booking listings.
type ListBookingsParams struct {
	Labs            []string
	Statuses        []domain.Status
	DateFrom        string
	DateTo          string
	ProposedBy      string
	Period          ListPeriod
	PeriodReference time.Time
	Limit           int
}

// ListEventsParams narrows event listings.
type ListEventsParams struct {
	Labs            []string
	DateFrom        string
	DateTo          string
	Period          ListPeriod
	PeriodReference time.Time
	Limit           int
}

// EventInput describes events to create: every lab × block on one date, or
// on every date Repeat selects starting at Date. A single "All" entry in Labs
// occupies every lab.
type EventInput struct {
	Title       string
	Description string
	Type        domain.EventType
	Labs        []string
	TimeBlocks  []string
	Date        string
	Repeat      *recurrence.Rule
}

// CreateEventsParams wraps event creation.
type CreateEventsParams struct {
	Actor domain.Actor
	Input EventInput
}

// EventChanges lists the editable event fields. Nil fields are unchanged.
type EventChanges struct {
	Title       *string
	Description *string
	Type        *domain.EventType
	Lab         *string
	Date        *string
	TimeBlock   *string
}

// UpdateEventParams wraps an event edit.
type UpdateEventParams struct {
	Actor   domain.Actor
	EventID string
	Changes EventChanges
}

// ShadowWarning tells the caller that an event now covers an active booking.
type ShadowWarning struct {
	EventID   string
	BookingID string
	Lab       string
	Block     string
	Status    domain.Status
}

// EventsResult reports created or updated events.
type EventsResult struct {
	Events     []domain.Event
	Warnings   []ShadowWarning
	Deliveries []notify.Delivery
}

// ScheduleCell is one lab and block of a day grid.
type ScheduleCell struct {
	Lab      string
	Block    string
	Bookings []domain.Booking
	Events   []domain.Event
}

// Free reports whether nothing active occupies the cell.
func (c ScheduleCell) Free() bool {
	return len(c.Bookings) == 0 && len(c.Events) == 0
}

// DaySchedule is the occupancy grid of a date.
type DaySchedule struct {
	Date   string
	Labs   []string
	Blocks []catalog.TimeBlock
	Cells  []ScheduleCell
}
