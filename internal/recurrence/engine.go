// Package recurrence expands repeat rules into calendar dates so a single
// request can place the same event on many days.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// MaxOccurrences bounds a single expansion; a little over a year of daily dates.
const MaxOccurrences = 370

// Frequency represents supported recurrence intervals.
type Frequency string

const (
	// FrequencyDaily repeats every day, optionally filtered by weekdays.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats on the selected weekdays.
	FrequencyWeekly Frequency = "weekly"
)

var (
	// ErrInvalidFrequency indicates the rule frequency is not supported.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidWindow indicates the rule has no usable end date.
	ErrInvalidWindow = errors.New("recurrence: until must be a date on or after the first date")
	// ErrNoWeekdays indicates a weekly rule without weekdays.
	ErrNoWeekdays = errors.New("recurrence: weekly rules need at least one weekday")
	// ErrTooManyOccurrences indicates the window yields more than MaxOccurrences dates.
	ErrTooManyOccurrences = errors.New("recurrence: too many occurrences")
)

// Rule describes how a date repeats. Until is inclusive.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	Until     string
}

// Engine expands rules in a fixed location.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine for loc. A nil loc uses UTC.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ParseWeekday accepts English weekday names or their three-letter prefixes.
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("recurrence: unknown weekday %q", value)
}

// Dates returns first and every later date up to rule.Until that the rule
// selects, in order. first is always included for daily rules without a
// weekday filter; otherwise only matching dates are returned.
func (e *Engine) Dates(first string, rule Rule) ([]string, error) {
	start, err := time.ParseInLocation(dateLayout, first, e.location)
	if err != nil {
		return nil, fmt.Errorf("recurrence: first date %q: %w", first, err)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(rule.Until), e.location)
	if err != nil || end.Before(start) {
		return nil, ErrInvalidWindow
	}

	weekdays := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, d := range rule.Weekdays {
		weekdays[d] = struct{}{}
	}
	switch rule.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if len(weekdays) == 0 {
			return nil, ErrNoWeekdays
		}
	default:
		return nil, ErrInvalidFrequency
	}

	var dates []string
	// AddDate keeps wall-clock days across DST changes.
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if len(weekdays) > 0 {
			if _, ok := weekdays[day.Weekday()]; !ok {
				continue
			}
		}
		if len(dates) == MaxOccurrences {
			return nil, ErrTooManyOccurrences
		}
		dates = append(dates, day.Format(dateLayout))
	}
	return dates, nil
}
