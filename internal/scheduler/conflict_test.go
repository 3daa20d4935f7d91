package scheduler

import (
	"testing"
	"time"
)

func window(hour, minute, length int) (time.Time, time.Time) {
	start := time.Date(2025, 11, 25, hour, minute, 0, 0, time.UTC)
	return start, start.Add(time.Duration(length) * time.Minute)
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	start, end := window(7, 0, 130)

	t.Run("exact start on the same lab produces conflict", func(t *testing.T) {
		t.Parallel()
		existing := []Occupant{{ID: "b1", Source: SourceBooking, Lab: "Anatomy 1", Start: start, End: end}}
		conflicts := DetectConflicts(existing, Occupant{Lab: "Anatomy 1", Start: start, End: end})
		if len(conflicts) != 1 {
			t.Fatalf("expected one conflict, got %d", len(conflicts))
		}
		if conflicts[0].Type != ConflictTypeExact || conflicts[0].WithID != "b1" {
			t.Fatalf("unexpected conflict %+v", conflicts[0])
		}
	})

	t.Run("all-lab event blocks every lab and sorts first", func(t *testing.T) {
		t.Parallel()
		existing := []Occupant{
			{ID: "b1", Source: SourceBooking, Lab: "Chemistry 1", Start: start, End: end},
			{ID: "e1", Source: SourceEvent, Lab: AllLabs, Start: start, End: end},
		}
		conflicts := DetectConflicts(existing, Occupant{Lab: "Chemistry 1", Start: start, End: end})
		if len(conflicts) != 2 {
			t.Fatalf("expected two conflicts, got %d", len(conflicts))
		}
		if conflicts[0].Source != SourceEvent {
			t.Fatalf("expected event first, got %+v", conflicts)
		}
	})

	t.Run("overlapping window is reported as overlap", func(t *testing.T) {
		t.Parallel()
		oStart, oEnd := window(8, 0, 60)
		existing := []Occupant{{ID: "b2", Source: SourceBooking, Lab: "Anatomy 1", Start: oStart, End: oEnd}}
		conflicts := DetectConflicts(existing, Occupant{Lab: "Anatomy 1", Start: start, End: end})
		if len(conflicts) != 1 || conflicts[0].Type != ConflictTypeOverlap {
			t.Fatalf("expected overlap conflict, got %+v", conflicts)
		}
	})

	t.Run("adjacent or foreign lab yields no conflicts", func(t *testing.T) {
		t.Parallel()
		nStart, nEnd := window(9, 30, 150)
		existing := []Occupant{
			{ID: "b3", Source: SourceBooking, Lab: "Anatomy 1", Start: nStart, End: nEnd},
			{ID: "b4", Source: SourceBooking, Lab: "Anatomy 2", Start: start, End: end},
		}
		if conflicts := DetectConflicts(existing, Occupant{Lab: "Anatomy 1", Start: start, End: end}); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})

	t.Run("candidate never conflicts with itself", func(t *testing.T) {
		t.Parallel()
		existing := []Occupant{{ID: "b1", Source: SourceBooking, Lab: "Anatomy 1", Start: start, End: end}}
		if conflicts := DetectConflicts(existing, Occupant{ID: "b1", Lab: "Anatomy 1", Start: start, End: end}); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %+v", conflicts)
		}
	})
}

func TestOccupiedBlocks(t *testing.T) {
	t.Parallel()

	occupants := []Occupant{
		{ID: "b1", Lab: "Anatomy 1", Blocks: []string{"07:00-09:10"}},
		{ID: "b2", Lab: "Anatomy 2", Blocks: []string{"09:30-12:00"}},
		{ID: "b3", Lab: "Chemistry 1", Blocks: []string{"13:00-15:10"}},
		{ID: "e1", Lab: AllLabs, Blocks: []string{"20:30-22:00"}},
	}

	got := OccupiedBlocks(occupants, []string{"Anatomy 1", "Anatomy 2"}, "b2")
	want := []string{"07:00-09:10", "20:30-22:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, block := range want {
		if _, ok := got[block]; !ok {
			t.Fatalf("missing block %s in %v", block, got)
		}
	}
}

func TestBuildGrid(t *testing.T) {
	t.Parallel()

	occupants := []Occupant{
		{ID: "b1", Lab: "Anatomy 1", Blocks: []string{"07:00-09:10"}},
		{ID: "e1", Lab: AllLabs, Blocks: []string{"09:30-12:00"}},
	}
	cells := BuildGrid([]string{"Anatomy 1", "Anatomy 2"}, []string{"07:00-09:10", "09:30-12:00"}, occupants)
	if len(cells) != 4 {
		t.Fatalf("expected four cells, got %d", len(cells))
	}
	if len(cells[0].Occupants) != 1 || cells[0].Occupants[0].ID != "b1" {
		t.Fatalf("unexpected first cell %+v", cells[0])
	}
	if len(cells[2].Occupants) != 0 {
		t.Fatalf("expected Anatomy 2 morning free, got %+v", cells[2])
	}
	if len(cells[3].Occupants) != 1 || cells[3].Occupants[0].ID != "e1" {
		t.Fatalf("expected all-lab event on Anatomy 2, got %+v", cells[3])
	}
}
