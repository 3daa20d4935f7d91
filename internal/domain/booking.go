package domain

import "time"

// ActivityType classifies what a booking is used for.
type ActivityType string

const (
	ActivityClass  ActivityType = "class"
	ActivityReview ActivityType = "review"
)

// Valid reports whether the activity type is one of the known values.
func (t ActivityType) Valid() bool {
	return t == ActivityClass || t == ActivityReview
}

// Status is the approval state of a booking.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Active reports whether a booking in this status occupies its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Booking is a scheduled class or review occupying one lab on one time block.
type Booking struct {
	ID                    string
	Subject               string
	ActivityType          ActivityType
	Courses               []string
	Lab                   string
	Date                  string
	TimeBlocks            []string
	StartAt               time.Time
	EndAt                 time.Time
	Status                Status
	ProposedByUserID      string
	ProposedByName        string
	AssignedTechnicianIDs []string
	Notes                 string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Block returns the primary time block of the booking. Records written by
// this service always carry exactly one.
func (b Booking) Block() string {
	if len(b.TimeBlocks) == 0 {
		return ""
	}
	return b.TimeBlocks[0]
}

// IsAssigned reports whether the technician is assigned to the booking.
func (b Booking) IsAssigned(userID string) bool {
	for _, id := range b.AssignedTechnicianIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the booking.
func (b Booking) Clone() Booking {
	out := b
	out.Courses = cloneStrings(b.Courses)
	out.TimeBlocks = cloneStrings(b.TimeBlocks)
	out.AssignedTechnicianIDs = cloneStrings(b.AssignedTechnicianIDs)
	return out
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
