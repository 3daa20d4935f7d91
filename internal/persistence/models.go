package persistence

import (
	"fmt"
	"time"

	"github.com/example/lab-scheduler/internal/domain"
)

// TimestampLayout is the stored form of every instant. Fixed width UTC keeps
// lexical order equal to chronological order on all backends.
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTime renders an instant for storage and for filter values.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// ParseTime reads a stored instant.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		// older rows carried fractional seconds or offsets
		t, err = time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// CanonicalTime rewrites a stored instant into TimestampLayout. Values that
// do not parse are returned unchanged.
func CanonicalTime(value string) string {
	t, err := ParseTime(value)
	if err != nil {
		return value
	}
	return FormatTime(t)
}

// EncodeBooking converts a booking into its stored document.
func EncodeBooking(b domain.Booking) Document {
	return Document{
		"subject":               b.Subject,
		"activityType":          string(b.ActivityType),
		"courses":               stringList(b.Courses),
		"lab":                   b.Lab,
		"date":                  b.Date,
		"timeBlock":             encodeBlocks(b.TimeBlocks),
		"startAt":               FormatTime(b.StartAt),
		"endAt":                 FormatTime(b.EndAt),
		"status":                string(b.Status),
		"proposedByUserId":      b.ProposedByUserID,
		"proposedByName":        b.ProposedByName,
		"assignedTechnicianIds": stringList(b.AssignedTechnicianIDs),
		"notes":                 b.Notes,
		"createdAt":             FormatTime(b.CreatedAt),
		"updatedAt":             FormatTime(b.UpdatedAt),
	}
}

// DecodeBooking converts a stored document into a booking, normalizing the
// legacy array form of timeBlock into a list.
func DecodeBooking(rec Record) (domain.Booking, error) {
	d := decoder{doc: rec.Doc}
	b := domain.Booking{
		ID:                    rec.ID,
		Subject:               d.str("subject"),
		ActivityType:          domain.ActivityType(d.str("activityType")),
		Courses:               d.list("courses"),
		Lab:                   d.str("lab"),
		Date:                  d.str("date"),
		TimeBlocks:            d.blocks("timeBlock"),
		StartAt:               d.time("startAt"),
		EndAt:                 d.time("endAt"),
		Status:                domain.Status(d.str("status")),
		ProposedByUserID:      d.str("proposedByUserId"),
		ProposedByName:        d.str("proposedByName"),
		AssignedTechnicianIDs: d.list("assignedTechnicianIds"),
		Notes:                 d.str("notes"),
		CreatedAt:             d.time("createdAt"),
		UpdatedAt:             d.time("updatedAt"),
	}
	if d.err != nil {
		return domain.Booking{}, fmt.Errorf("%w: booking %s: %v", ErrCorruptDocument, rec.ID, d.err)
	}
	return b, nil
}

// EncodeEvent converts an event into its stored document.
func EncodeEvent(e domain.Event) Document {
	return Document{
		"title":           e.Title,
		"description":     e.Description,
		"type":            string(e.Type),
		"lab":             e.Lab,
		"date":            e.Date,
		"timeBlock":       encodeBlocks(e.TimeBlocks),
		"startAt":         FormatTime(e.StartAt),
		"endAt":           FormatTime(e.EndAt),
		"createdByUserId": e.CreatedByUserID,
		"createdAt":       FormatTime(e.CreatedAt),
		"updatedAt":       FormatTime(e.UpdatedAt),
	}
}

// DecodeEvent converts a stored document into an event.
func DecodeEvent(rec Record) (domain.Event, error) {
	d := decoder{doc: rec.Doc}
	e := domain.Event{
		ID:              rec.ID,
		Title:           d.str("title"),
		Description:     d.str("description"),
		Type:            domain.EventType(d.str("type")),
		Lab:             d.str("lab"),
		Date:            d.str("date"),
		TimeBlocks:      d.blocks("timeBlock"),
		StartAt:         d.time("startAt"),
		EndAt:           d.time("endAt"),
		CreatedByUserID: d.str("createdByUserId"),
		CreatedAt:       d.time("createdAt"),
		UpdatedAt:       d.time("updatedAt"),
	}
	if d.err != nil {
		return domain.Event{}, fmt.Errorf("%w: event %s: %v", ErrCorruptDocument, rec.ID, d.err)
	}
	return e, nil
}

// EncodeActivity converts an activity entry into its stored document.
func EncodeActivity(a domain.ActivityEntry) Document {
	return Document{
		"actionType":  string(a.ActionType),
		"kind":        string(a.Kind),
		"actorUserId": a.ActorUserID,
		"actorName":   a.ActorName,
		"timestamp":   FormatTime(a.Timestamp),
		"snapshot": map[string]any{
			"recordId":  a.RecordID,
			"lab":       a.Lab,
			"date":      a.Date,
			"timeBlock": a.Block,
			"title":     a.Title,
		},
	}
}

// DecodeActivity converts a stored document into an activity entry.
func DecodeActivity(rec Record) (domain.ActivityEntry, error) {
	d := decoder{doc: rec.Doc}
	a := domain.ActivityEntry{
		ID:          rec.ID,
		ActionType:  domain.ActionType(d.str("actionType")),
		Kind:        domain.RecordKind(d.str("kind")),
		ActorUserID: d.str("actorUserId"),
		ActorName:   d.str("actorName"),
		Timestamp:   d.time("timestamp"),
	}
	snapshot := decoder{doc: d.nested("snapshot")}
	a.RecordID = snapshot.str("recordId")
	a.Lab = snapshot.str("lab")
	a.Date = snapshot.str("date")
	a.Title = snapshot.str("title")
	if blocks := snapshot.blocks("timeBlock"); len(blocks) > 0 {
		a.Block = blocks[0]
	}
	if d.err != nil {
		return domain.ActivityEntry{}, fmt.Errorf("%w: activity %s: %v", ErrCorruptDocument, rec.ID, d.err)
	}
	return a, nil
}

func encodeBlocks(blocks []string) any {
	if len(blocks) == 1 {
		return blocks[0]
	}
	return stringList(blocks)
}

func stringList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}

type decoder struct {
	doc Document
	err error
}

func (d *decoder) str(field string) string {
	switch v := d.doc[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		d.fail(field, v)
		return ""
	}
}

func (d *decoder) time(field string) time.Time {
	raw := d.str(field)
	t, err := ParseTime(raw)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("field %s: %w", field, err)
	}
	return t
}

func (d *decoder) list(field string) []string {
	out, ok := toStrings(d.doc[field])
	if !ok {
		d.fail(field, d.doc[field])
	}
	return out
}

// blocks accepts both the current single-value shape and the legacy list.
func (d *decoder) blocks(field string) []string {
	switch v := d.doc[field].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		out, ok := toStrings(v)
		if !ok {
			d.fail(field, v)
		}
		return out
	}
}

func (d *decoder) nested(field string) Document {
	switch v := d.doc[field].(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	}
	return Document{}
}

func (d *decoder) fail(field string, value any) {
	if d.err == nil {
		d.err = fmt.Errorf("field %s has unexpected type %T", field, value)
	}
}

func toStrings(value any) ([]string, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case []string:
		return append([]string(nil), v...), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
