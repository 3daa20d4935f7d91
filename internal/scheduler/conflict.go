package scheduler

import (
	"sort"
	"time"
)

// AllLabs marks an occupant that blocks every lab.
const AllLabs = "All"

// Source identifies which repository an occupant came from.
type Source string

const (
	// SourceBooking marks a class or review booking.
	SourceBooking Source = "booking"
	// SourceEvent marks an administrative event.
	SourceEvent Source = "event"
)

// Occupant is anything holding a lab over a time window.
type Occupant struct {
	ID     string
	Source Source
	Lab    string
	Blocks []string
	Start  time.Time
	End    time.Time
}

// Covers reports whether the occupant holds the named lab.
func (o Occupant) Covers(lab string) bool {
	return o.Lab == lab || o.Lab == AllLabs
}

// ConflictType describes how a candidate collides with an occupant.
type ConflictType string

const (
	// ConflictTypeExact indicates both claim the same lab at the same start.
	ConflictTypeExact ConflictType = "exact_start"
	// ConflictTypeOverlap indicates the windows intersect without sharing a start.
	ConflictTypeOverlap ConflictType = "overlap"
)

// Conflict details an occupied relation that callers can present to users.
type Conflict struct {
	WithID string
	Source Source
	Type   ConflictType
	Lab    string
	Start  time.Time
}

// DetectConflicts identifies the occupants a candidate collides with. Events
// sort ahead of bookings so the first conflict is always the one that takes
// precedence; ties keep chronological order.
func DetectConflicts(existing []Occupant, candidate Occupant) []Conflict {
	var conflicts []Conflict
	for _, occ := range existing {
		if occ.ID != "" && occ.ID == candidate.ID {
			continue
		}
		if !occ.Covers(candidate.Lab) {
			continue
		}
		typ, ok := collide(occ, candidate)
		if !ok {
			continue
		}
		conflicts = append(conflicts, Conflict{
			WithID: occ.ID,
			Source: occ.Source,
			Type:   typ,
			Lab:    occ.Lab,
			Start:  occ.Start,
		})
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Source != conflicts[j].Source {
			return conflicts[i].Source == SourceEvent
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}

func collide(occ, candidate Occupant) (ConflictType, bool) {
	if occ.Start.Equal(candidate.Start) {
		return ConflictTypeExact, true
	}
	// half-open windows; a zero end collapses to an instant
	if occ.End.IsZero() || candidate.End.IsZero() {
		return "", false
	}
	if occ.Start.Before(candidate.End) && candidate.Start.Before(occ.End) {
		return ConflictTypeOverlap, true
	}
	return "", false
}

// OccupiedBlocks returns the set of block values held on any of the labs,
// skipping the occupant whose id equals excludeID.
func OccupiedBlocks(occupants []Occupant, labs []string, excludeID string) map[string]struct{} {
	wanted := make(map[string]struct{}, len(labs))
	for _, lab := range labs {
		wanted[lab] = struct{}{}
	}

	out := make(map[string]struct{})
	for _, occ := range occupants {
		if excludeID != "" && occ.ID == excludeID {
			continue
		}
		if occ.Lab != AllLabs {
			if _, ok := wanted[occ.Lab]; !ok {
				continue
			}
		}
		for _, block := range occ.Blocks {
			out[block] = struct{}{}
		}
	}
	return out
}

// Cell is one lab and block position in a day grid.
type Cell struct {
	Lab       string
	Block     string
	Occupants []Occupant
}

// BuildGrid lays occupants out over labs (rows) and blocks (columns) in the
// order given. Events on every lab appear in each row.
func BuildGrid(labs, blocks []string, occupants []Occupant) []Cell {
	index := make(map[string]int, len(labs)*len(blocks))
	cells := make([]Cell, 0, len(labs)*len(blocks))
	for _, lab := range labs {
		for _, block := range blocks {
			index[lab+"|"+block] = len(cells)
			cells = append(cells, Cell{Lab: lab, Block: block})
		}
	}

	for _, occ := range occupants {
		for _, lab := range labs {
			if !occ.Covers(lab) {
				continue
			}
			for _, block := range occ.Blocks {
				if idx, ok := index[lab+"|"+block]; ok {
					cells[idx].Occupants = append(cells[idx].Occupants, occ)
				}
			}
		}
	}
	return cells
}
