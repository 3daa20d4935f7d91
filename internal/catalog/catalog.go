// Package catalog holds the static reference data of the scheduler: labs,
// lab types, courses and the six fixed daily time blocks.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by bookings and events.
const DateLayout = "2006-01-02"

var (
	// ErrUnknownLab is returned when a lab id or name is not in the catalog.
	ErrUnknownLab = errors.New("catalog: unknown lab")
	// ErrUnknownBlock is returned for a time block value outside the fixed set.
	ErrUnknownBlock = errors.New("catalog: unknown time block")
	// ErrInvalidDate is returned when a date does not parse as YYYY-MM-DD.
	ErrInvalidDate = errors.New("catalog: invalid date")
)

// LabType groups labs for notification routing and proposal lab groups.
type LabType string

const (
	LabTypeAnatomy           LabType = "anatomy"
	LabTypeMicroscopy        LabType = "microscopy"
	LabTypeMultidisciplinary LabType = "multidisciplinary"
	LabTypePharmaceutical    LabType = "pharmaceutical"
	LabTypeChemistry         LabType = "chemistry"
	LabTypeSkills            LabType = "skills"
)

// Lab is a physical bookable resource.
type Lab struct {
	ID   string
	Name string
	Type LabType
}

// Shift is the part of the day a time block belongs to.
type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftNight     Shift = "night"
)

// TimeBlock is one of the fixed daily scheduling windows.
type TimeBlock struct {
	Value string
	Label string
	Shift Shift
	Start string
	End   string
}

var defaultBlocks = []TimeBlock{
	{Value: "07:00-09:10", Label: "07:00 - 09:10", Shift: ShiftMorning, Start: "07:00", End: "09:10"},
	{Value: "09:30-12:00", Label: "09:30 - 12:00", Shift: ShiftMorning, Start: "09:30", End: "12:00"},
	{Value: "13:00-15:10", Label: "13:00 - 15:10", Shift: ShiftAfternoon, Start: "13:00", End: "15:10"},
	{Value: "15:30-18:00", Label: "15:30 - 18:00", Shift: ShiftAfternoon, Start: "15:30", End: "18:00"},
	{Value: "18:30-20:10", Label: "18:30 - 20:10", Shift: ShiftNight, Start: "18:30", End: "20:10"},
	{Value: "20:30-22:00", Label: "20:30 - 22:00", Shift: ShiftNight, Start: "20:30", End: "22:00"},
}

var defaultLabs = []Lab{
	{ID: "anatomy-1", Name: "Anatomy 1", Type: LabTypeAnatomy},
	{ID: "anatomy-2", Name: "Anatomy 2", Type: LabTypeAnatomy},
	{ID: "microscopy-1", Name: "Microscopy 1", Type: LabTypeMicroscopy},
	{ID: "microscopy-2", Name: "Microscopy 2", Type: LabTypeMicroscopy},
	{ID: "multidisciplinary-1", Name: "Multidisciplinary 1", Type: LabTypeMultidisciplinary},
	{ID: "multidisciplinary-2", Name: "Multidisciplinary 2", Type: LabTypeMultidisciplinary},
	{ID: "pharmaceutical-tech", Name: "Pharmaceutical Technology", Type: LabTypePharmaceutical},
	{ID: "chemistry-1", Name: "Chemistry 1", Type: LabTypeChemistry},
	{ID: "skills", Name: "Clinical Skills", Type: LabTypeSkills},
}

var defaultCourses = []string{
	"Biomedicine",
	"Dentistry",
	"Medicine",
	"Nursing",
	"Nutrition",
	"Pharmacy",
	"Physiotherapy",
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	labs     []Lab
	courses  []string
	blocks   []TimeBlock
	byKey    map[string]Lab
	blockIdx map[string]int
	location *time.Location
}

// Default returns the institutional catalog anchored to the given location.
func Default(location *time.Location) *Catalog {
	return New(defaultLabs, defaultCourses, location)
}

// New builds a catalog over the provided labs and courses. Time blocks are
// always the fixed daily set. A nil location falls back to UTC.
func New(labs []Lab, courses []string, location *time.Location) *Catalog {
	if location == nil {
		location = time.UTC
	}
	c := &Catalog{
		labs:     append([]Lab(nil), labs...),
		courses:  append([]string(nil), courses...),
		blocks:   append([]TimeBlock(nil), defaultBlocks...),
		byKey:    make(map[string]Lab, len(labs)*2),
		blockIdx: make(map[string]int, len(defaultBlocks)),
		location: location,
	}
	for _, lab := range c.labs {
		c.byKey[strings.ToLower(lab.ID)] = lab
		c.byKey[strings.ToLower(lab.Name)] = lab
	}
	for i, block := range c.blocks {
		c.blockIdx[block.Value] = i
	}
	return c
}

// Location returns the time zone in which block boundaries are interpreted.
func (c *Catalog) Location() *time.Location {
	return c.location
}

// Labs returns every lab in catalog order.
func (c *Catalog) Labs() []Lab {
	return append([]Lab(nil), c.labs...)
}

// LabsOfType returns the labs of a single type in catalog order.
func (c *Catalog) LabsOfType(labType LabType) []Lab {
	var out []Lab
	for _, lab := range c.labs {
		if lab.Type == labType {
			out = append(out, lab)
		}
	}
	return out
}

// LabTypes returns the distinct lab types in first-seen order.
func (c *Catalog) LabTypes() []LabType {
	seen := make(map[LabType]struct{})
	var out []LabType
	for _, lab := range c.labs {
		if _, ok := seen[lab.Type]; ok {
			continue
		}
		seen[lab.Type] = struct{}{}
		out = append(out, lab.Type)
	}
	return out
}

// Courses returns the course list.
func (c *Catalog) Courses() []string {
	return append([]string(nil), c.courses...)
}

// Blocks returns the fixed daily time blocks in chronological order.
func (c *Catalog) Blocks() []TimeBlock {
	return append([]TimeBlock(nil), c.blocks...)
}

// Lab resolves a lab by id or by name, case-insensitively.
func (c *Catalog) Lab(ref string) (Lab, error) {
	lab, ok := c.byKey[strings.ToLower(strings.TrimSpace(ref))]
	if !ok {
		return Lab{}, fmt.Errorf("%w: %q", ErrUnknownLab, ref)
	}
	return lab, nil
}

// LabType returns the type of a lab given its id or name. Unknown labs and
// the all-labs marker report ok=false.
func (c *Catalog) LabType(ref string) (LabType, bool) {
	lab, err := c.Lab(ref)
	if err != nil {
		return "", false
	}
	return lab.Type, true
}

// Block looks up a time block by its "HH:MM-HH:MM" value.
func (c *Catalog) Block(value string) (TimeBlock, error) {
	idx, ok := c.blockIdx[strings.TrimSpace(value)]
	if !ok {
		return TimeBlock{}, fmt.Errorf("%w: %q", ErrUnknownBlock, value)
	}
	return c.blocks[idx], nil
}

// BlockOrder returns the chronological position of a block value, or -1.
func (c *Catalog) BlockOrder(value string) int {
	idx, ok := c.blockIdx[value]
	if !ok {
		return -1
	}
	return idx
}

// ParseDate validates a YYYY-MM-DD date in the catalog location.
func (c *Catalog) ParseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), c.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return day, nil
}

// Resolve combines a date with a block's start and end clock times.
func (c *Catalog) Resolve(date, blockValue string) (start, end time.Time, err error) {
	day, err := c.ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	block, err := c.Block(blockValue)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err = atClock(day, block.Start, c.location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = atClock(day, block.End, c.location)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func atClock(day time.Time, clock string, location *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: clock %q", ErrUnknownBlock, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, location), nil
}

// SortBlocks orders block values chronologically and drops duplicates and
// values outside the catalog.
func (c *Catalog) SortBlocks(values []string) []string {
	present := make([]bool, len(c.blocks))
	for _, v := range values {
		if idx, ok := c.blockIdx[v]; ok {
			present[idx] = true
		}
	}
	out := make([]string, 0, len(values))
	for i, ok := range present {
		if ok {
			out = append(out, c.blocks[i].Value)
		}
	}
	return out
}
