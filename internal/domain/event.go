package domain

import "time"

// AllLabs is the lab value of an event that blocks every laboratory.
const AllLabs = "All"

// EventType classifies administrative events.
type EventType string

const (
	EventMaintenance   EventType = "maintenance"
	EventHoliday       EventType = "holiday"
	EventInstitutional EventType = "institutional"
	EventOther         EventType = "other"
)

// Valid reports whether the event type is one of the known values.
func (t EventType) Valid() bool {
	switch t {
	case EventMaintenance, EventHoliday, EventInstitutional, EventOther:
		return true
	}
	return false
}

// Event is an administrative block such as maintenance or a holiday. Events
// take precedence over bookings on the slots they occupy.
type Event struct {
	ID              string
	Title           string
	Description     string
	Type            EventType
	Lab             string
	Date            string
	TimeBlocks      []string
	StartAt         time.Time
	EndAt           time.Time
	CreatedByUserID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Block returns the primary time block of the event.
func (e Event) Block() string {
	if len(e.TimeBlocks) == 0 {
		return ""
	}
	return e.TimeBlocks[0]
}

// AppliesTo reports whether the event occupies the named lab.
func (e Event) AppliesTo(lab string) bool {
	return e.Lab == AllLabs || e.Lab == lab
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.TimeBlocks = cloneStrings(e.TimeBlocks)
	return out
}
