package testfixtures

import (
	"fmt"
	"time"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
)

// Institution is the fixture time zone: UTC-3 without daylight saving.
var Institution = time.FixedZone("BRT", -3*60*60)

// Catalog returns the default catalog in the fixture time zone.
func Catalog() *catalog.Catalog {
	return catalog.Default(Institution)
}

// Actors used across tests.
var (
	Coordinator = domain.Actor{UserID: "coord-1", DisplayName: "Ana Coordenadora", Role: domain.RoleCoordinator}
	Technician  = domain.Actor{UserID: "tech-1", DisplayName: "Bruno Técnico", Role: domain.RoleTechnician}
	Technician2 = domain.Actor{UserID: "tech-2", DisplayName: "Carla Técnica", Role: domain.RoleTechnician}
)

// BookingFixture describes a stored booking; empty fields get defaults.
type BookingFixture struct {
	ID          string
	Subject     string
	Lab         string
	Date        string
	Block       string
	Status      domain.Status
	ProposedBy  domain.Actor
	Technicians []string
}

// Booking materialises the fixture, resolving start and end from the catalog.
func (f BookingFixture) Booking(cat *catalog.Catalog) domain.Booking {
	if f.Subject == "" {
		f.Subject = "Anatomia Humana"
	}
	if f.Lab == "" {
		f.Lab = "Anatomy 1"
	}
	if f.Date == "" {
		f.Date = "2025-11-25"
	}
	if f.Block == "" {
		f.Block = "07:00-09:10"
	}
	if f.Status == "" {
		f.Status = domain.StatusApproved
	}
	if f.ProposedBy.UserID == "" {
		f.ProposedBy = Coordinator
	}
	start, end, err := cat.Resolve(f.Date, f.Block)
	if err != nil {
		panic(fmt.Sprintf("fixture booking %s: %v", f.ID, err))
	}
	return domain.Booking{
		ID:                    f.ID,
		Subject:               f.Subject,
		ActivityType:          domain.ActivityClass,
		Courses:               []string{"Medicine"},
		Lab:                   f.Lab,
		Date:                  f.Date,
		TimeBlocks:            []string{f.Block},
		StartAt:               start,
		EndAt:                 end,
		Status:                f.Status,
		ProposedByUserID:      f.ProposedBy.UserID,
		ProposedByName:        f.ProposedBy.DisplayName,
		AssignedTechnicianIDs: f.Technicians,
		CreatedAt:             ReferenceTime().Add(-24 * time.Hour),
		UpdatedAt:             ReferenceTime().Add(-24 * time.Hour),
	}
}

// EventFixture describes a stored event; empty fields get defaults.
type EventFixture struct {
	ID    string
	Title string
	Type  domain.EventType
	Lab   string
	Date  string
	Block string
}

// Event materialises the fixture.
func (f EventFixture) Event(cat *catalog.Catalog) domain.Event {
	if f.Title == "" {
		f.Title = "Manutenção preventiva"
	}
	if f.Type == "" {
		f.Type = domain.EventMaintenance
	}
	if f.Lab == "" {
		f.Lab = domain.AllLabs
	}
	start, end, err := cat.Resolve(f.Date, f.Block)
	if err != nil {
		panic(fmt.Sprintf("fixture event %s: %v", f.ID, err))
	}
	return domain.Event{
		ID:              f.ID,
		Title:           f.Title,
		Type:            f.Type,
		Lab:             f.Lab,
		Date:            f.Date,
		TimeBlocks:      []string{f.Block},
		StartAt:         start,
		EndAt:           end,
		CreatedByUserID: Coordinator.UserID,
		CreatedAt:       ReferenceTime().Add(-48 * time.Hour),
		UpdatedAt:       ReferenceTime().Add(-48 * time.Hour),
	}
}
