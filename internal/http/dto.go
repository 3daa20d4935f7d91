package http

import (
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/recurrence"
)

type labResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type blockResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Shift string `json:"shift"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type catalogResponse struct {
	Labs     []labResponse   `json:"labs"`
	LabTypes []string        `json:"labTypes"`
	Blocks   []blockResponse `json:"timeBlocks"`
	Courses  []string        `json:"courses"`
	TimeZone string          `json:"timeZone"`
}

func toCatalogResponse(cat *catalog.Catalog) catalogResponse {
	resp := catalogResponse{
		Labs:     make([]labResponse, 0, len(cat.Labs())),
		LabTypes: make([]string, 0),
		Blocks:   toBlockResponses(cat.Blocks()),
		Courses:  append([]string{}, cat.Courses()...),
		TimeZone: cat.Location().String(),
	}
	for _, lab := range cat.Labs() {
		resp.Labs = append(resp.Labs, labResponse{ID: lab.ID, Name: lab.Name, Type: string(lab.Type)})
	}
	for _, t := range cat.LabTypes() {
		resp.LabTypes = append(resp.LabTypes, string(t))
	}
	return resp
}

func toBlockResponses(blocks []catalog.TimeBlock) []blockResponse {
	out := make([]blockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockResponse{Value: b.Value, Label: b.Label, Shift: string(b.Shift), Start: b.Start, End: b.End})
	}
	return out
}

type availabilityResponse struct {
	Date     string   `json:"date"`
	Labs     []string `json:"labs"`
	Occupied []string `json:"occupied"`
}

type bookingResponse struct {
	ID                    string    `json:"id"`
	Subject               string    `json:"subject"`
	ActivityType          string    `json:"activityType"`
	Courses               []string  `json:"courses"`
	Lab                   string    `json:"lab"`
	Date                  string    `json:"date"`
	TimeBlock             string    `json:"timeBlock"`
	StartAt               time.Time `json:"startAt"`
	EndAt                 time.Time `json:"endAt"`
	Status                string    `json:"status"`
	ProposedByUserID      string    `json:"proposedByUserId"`
	ProposedByName        string    `json:"proposedByName"`
	AssignedTechnicianIDs []string  `json:"assignedTechnicianIds"`
	Notes                 string    `json:"notes,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:                    b.ID,
		Subject:               b.Subject,
		ActivityType:          string(b.ActivityType),
		Courses:               nonNil(b.Courses),
		Lab:                   b.Lab,
		Date:                  b.Date,
		TimeBlock:             b.Block(),
		StartAt:               b.StartAt,
		EndAt:                 b.EndAt,
		Status:                string(b.Status),
		ProposedByUserID:      b.ProposedByUserID,
		ProposedByName:        b.ProposedByName,
		AssignedTechnicianIDs: nonNil(b.AssignedTechnicianIDs),
		Notes:                 b.Notes,
		CreatedAt:             b.CreatedAt,
		UpdatedAt:             b.UpdatedAt,
	}
}

func toBookingResponses(bookings []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out
}

type eventResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type"`
	Lab             string    `json:"lab"`
	Date            string    `json:"date"`
	TimeBlock       string    `json:"timeBlock"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
	CreatedByUserID string    `json:"createdByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:              e.ID,
		Title:           e.Title,
		Description:     e.Description,
		Type:            string(e.Type),
		Lab:             e.Lab,
		Date:            e.Date,
		TimeBlock:       e.Block(),
		StartAt:         e.StartAt,
		EndAt:           e.EndAt,
		CreatedByUserID: e.CreatedByUserID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toEventResponses(events []domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	return out
}

type cellResponse struct {
	Lab      string            `json:"lab"`
	Block    string            `json:"timeBlock"`
	Free     bool              `json:"free"`
	Bookings []bookingResponse `json:"bookings"`
	Events   []eventResponse   `json:"events"`
}

type dayScheduleResponse struct {
	Date   string          `json:"date"`
	Labs   []string        `json:"labs"`
	Blocks []blockResponse `json:"timeBlocks"`
	Cells  []cellResponse  `json:"cells"`
}

func toDayScheduleResponse(day application.DaySchedule) dayScheduleResponse {
	resp := dayScheduleResponse{
		Date:   day.Date,
		Labs:   nonNil(day.Labs),
		Blocks: toBlockResponses(day.Blocks),
		Cells:  make([]cellResponse, 0, len(day.Cells)),
	}
	for _, c := range day.Cells {
		resp.Cells = append(resp.Cells, cellResponse{
			Lab:      c.Lab,
			Block:    c.Block,
			Free:     c.Free(),
			Bookings: toBookingResponses(c.Bookings),
			Events:   toEventResponses(c.Events),
		})
	}
	return resp
}

type recordResponse struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Lab    string `json:"lab"`
	Date   string `json:"date"`
	Block  string `json:"timeBlock"`
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
}

func toRecordResponse(r application.ConflictRecord) recordResponse {
	resp := recordResponse{Source: string(r.Source), ID: r.ID()}
	switch {
	case r.Booking != nil:
		resp.Title = r.Booking.Subject
		resp.Lab = r.Booking.Lab
		resp.Date = r.Booking.Date
		resp.Block = r.Booking.Block()
		resp.Status = string(r.Booking.Status)
	case r.Event != nil:
		resp.Title = r.Event.Title
		resp.Lab = r.Event.Lab
		resp.Date = r.Event.Date
		resp.Block = r.Event.Block()
		resp.Type = string(r.Event.Type)
	}
	return resp
}

func toRecordResponses(records []application.ConflictRecord) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordResponse(r))
	}
	return out
}

type conflictResponse struct {
	Candidate  bookingResponse  `json:"candidate"`
	Record     recordResponse   `json:"record"`
	Additional []recordResponse `json:"additional"`
}

func conflictsFromReports(reports []application.ConflictReport) []conflictResponse {
	if len(reports) == 0 {
		return nil
	}
	out := make([]conflictResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, conflictResponse{
			Candidate:  toBookingResponse(r.Candidate),
			Record:     toRecordResponse(r.Record),
			Additional: toRecordResponses(r.Additional),
		})
	}
	return out
}

type deliveryResponse struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func toDeliveryResponses(deliveries []notify.Delivery) []deliveryResponse {
	out := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		resp := deliveryResponse{Channel: d.ChannelID, Delivered: d.Err == nil}
		if d.Err != nil {
			resp.Error = d.Err.Error()
		}
		out = append(out, resp)
	}
	return out
}

type labGroupRequest struct {
	LabType string   `json:"labType"`
	Labs    []string `json:"labs"`
}

type proposalRequest struct {
	Labs                  []string          `json:"labs"`
	LabGroups             []labGroupRequest `json:"labGroups"`
	TimeBlocks            []string          `json:"timeBlocks"`
	Date                  string            `json:"date"`
	Subject               string            `json:"subject"`
	ActivityType          string            `json:"activityType"`
	Courses               []string          `json:"courses"`
	Notes                 string            `json:"notes"`
	AssignedTechnicianIDs []string          `json:"assignedTechnicianIds"`
	ExcludeRecordID       string            `json:"excludeRecordId"`
	Policy                string            `json:"policy"`
}

func (p proposalRequest) toApplication() application.ProposalRequest {
	req := application.ProposalRequest{
		Labs:       p.Labs,
		TimeBlocks: p.TimeBlocks,
		Date:       p.Date,
		Draft: application.BookingDraft{
			Subject:               p.Subject,
			ActivityType:          domain.ActivityType(p.ActivityType),
			Courses:               p.Courses,
			Notes:                 p.Notes,
			AssignedTechnicianIDs: p.AssignedTechnicianIDs,
		},
		ExcludeRecordID: p.ExcludeRecordID,
	}
	for _, g := range p.LabGroups {
		req.LabGroups = append(req.LabGroups, application.LabGroup{LabType: catalog.LabType(g.LabType), Labs: g.Labs})
	}
	return req
}

type resolutionResponse struct {
	Total     int                `json:"total"`
	Clean     []bookingResponse  `json:"clean"`
	Conflicts []conflictResponse `json:"conflicts"`
}

func toResolutionResponse(res application.Resolution) resolutionResponse {
	conflicts := conflictsFromReports(res.Conflicts)
	if conflicts == nil {
		conflicts = []conflictResponse{}
	}
	return resolutionResponse{Total: res.Total(), Clean: toBookingResponses(res.Clean), Conflicts: conflicts}
}

type submitResponse struct {
	Created    []bookingResponse  `json:"created"`
	Replaced   []recordResponse   `json:"replaced"`
	Skipped    []conflictResponse `json:"skipped"`
	Deliveries []deliveryResponse `json:"deliveries"`
}

func toSubmitResponse(result application.SubmitResult) submitResponse {
	skipped := conflictsFromReports(result.Skipped)
	if skipped == nil {
		skipped = []conflictResponse{}
	}
	return submitResponse{
		Created:    toBookingResponses(result.Created),
		Replaced:   toRecordResponses(result.Replaced),
		Skipped:    skipped,
		Deliveries: toDeliveryResponses(result.Deliveries),
	}
}

type bookingResultResponse struct {
	Booking    bookingResponse    `json:"booking"`
	Deliveries []deliveryResponse `json:"deliveries"`
}

func toBookingResultResponse(result application.BookingResult) bookingResultResponse {
	return bookingResultResponse{Booking: toBookingResponse(result.Booking), Deliveries: toDeliveryResponses(result.Deliveries)}
}

type bookingChangesRequest struct {
	Subject               *string   `json:"subject"`
	ActivityType          *string   `json:"activityType"`
	Courses               *[]string `json:"courses"`
	Lab                   *string   `json:"lab"`
	Date                  *string   `json:"date"`
	TimeBlock             *string   `json:"timeBlock"`
	Notes                 *string   `json:"notes"`
	AssignedTechnicianIDs *[]string `json:"assignedTechnicianIds"`
	Approve               bool      `json:"approve"`
}

func (r bookingChangesRequest) toApplication() application.BookingChanges {
	changes := application.BookingChanges{
		Subject:               r.Subject,
		Courses:               r.Courses,
		Lab:                   r.Lab,
		Date:                  r.Date,
		TimeBlock:             r.TimeBlock,
		Notes:                 r.Notes,
		AssignedTechnicianIDs: r.AssignedTechnicianIDs,
	}
	if r.ActivityType != nil {
		t := domain.ActivityType(*r.ActivityType)
		changes.ActivityType = &t
	}
	return changes
}

type repeatRequest struct {
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays"`
	Until     string   `json:"until"`
}

type eventRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	Labs        []string       `json:"labs"`
	TimeBlocks  []string       `json:"timeBlocks"`
	Date        string         `json:"date"`
	Repeat      *repeatRequest `json:"repeat"`
}

// toApplication returns the input, or a field error for an unparsable weekday.
func (r eventRequest) toApplication() (application.EventInput, map[string]string) {
	input := application.EventInput{
		Title:       r.Title,
		Description: r.Description,
		Type:        domain.EventType(r.Type),
		Labs:        r.Labs,
		TimeBlocks:  r.TimeBlocks,
		Date:        r.Date,
	}
	if r.Repeat == nil {
		return input, nil
	}
	rule := &recurrence.Rule{Frequency: recurrence.Frequency(r.Repeat.Frequency), Until: r.Repeat.Until}
	for _, name := range r.Repeat.Weekdays {
		day, err := recurrence.ParseWeekday(name)
		if err != nil {
			return input, map[string]string{"repeat": translateValidationMessage(err.Error())}
		}
		rule.Weekdays = append(rule.Weekdays, day)
	}
	input.Repeat = rule
	return input, nil
}

type eventChangesRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Lab         *string `json:"lab"`
	Date        *string `json:"date"`
	TimeBlock   *string `json:"timeBlock"`
}

func (r eventChangesRequest) toApplication() application.EventChanges {
	changes := application.EventChanges{
		Title:       r.Title,
		Description: r.Description,
		Lab:         r.Lab,
		Date:        r.Date,
		TimeBlock:   r.TimeBlock,
	}
	if r.Type != nil {
		t := domain.EventType(*r.Type)
		changes.Type = &t
	}
	return changes
}

type warningResponse struct {
	EventID   string `json:"eventId"`
	BookingID string `json:"bookingId"`
	Lab       string `json:"lab"`
	Block     string `json:"timeBlock"`
	Status    string `json:"status"`
}

type eventsResultResponse struct {
	Events     []eventResponse    `json:"events"`
	Warnings   []warningResponse  `json:"warnings"`
	Deliveries []deliveryResponse `json:"deliveries"`
}

func toEventsResultResponse(result application.EventsResult) eventsResultResponse {
	resp := eventsResultResponse{
		Events:     toEventResponses(result.Events),
		Warnings:   make([]warningResponse, 0, len(result.Warnings)),
		Deliveries: toDeliveryResponses(result.Deliveries),
	}
	for _, w := range result.Warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{
			EventID:   w.EventID,
			BookingID: w.BookingID,
			Lab:       w.Lab,
			Block:     w.Block,
			Status:    string(w.Status),
		})
	}
	return resp
}

type activityResponse struct {
	ID          string    `json:"id"`
	ActionType  string    `json:"actionType"`
	Kind        string    `json:"kind"`
	RecordID    string    `json:"recordId"`
	Lab         string    `json:"lab"`
	Date        string    `json:"date"`
	Block       string    `json:"timeBlock"`
	Title       string    `json:"title"`
	ActorUserID string    `json:"actorUserId"`
	ActorName   string    `json:"actorName"`
	Timestamp   time.Time `json:"timestamp"`
}

func toActivityResponses(entries []domain.ActivityEntry) []activityResponse {
	out := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityResponse{
			ID:          e.ID,
			ActionType:  string(e.ActionType),
			Kind:        string(e.Kind),
			RecordID:    e.RecordID,
			Lab:         e.Lab,
			Date:        e.Date,
			Block:       e.Block,
			Title:       e.Title,
			ActorUserID: e.ActorUserID,
			ActorName:   e.ActorName,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
