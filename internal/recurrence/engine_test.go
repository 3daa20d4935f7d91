package recurrence

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestDates(t *testing.T) {
	t.Parallel()
	engine := NewEngine(time.FixedZone("BRT", -3*60*60))

	tests := []struct {
		name  string
		first string
		rule  Rule
		want  []string
		err   error
	}{
		{
			name:  "daily",
			first: "2025-11-28",
			rule:  Rule{Frequency: FrequencyDaily, Until: "2025-12-01"},
			want:  []string{"2025-11-28", "2025-11-29", "2025-11-30", "2025-12-01"},
		},
		{
			name:  "daily on weekdays",
			first: "2025-11-28",
			rule:  Rule{Frequency: FrequencyDaily, Weekdays: []time.Weekday{time.Monday, time.Friday}, Until: "2025-12-05"},
			want:  []string{"2025-11-28", "2025-12-01", "2025-12-05"},
		},
		{
			name:  "weekly tuesdays",
			first: "2025-11-24",
			rule:  Rule{Frequency: FrequencyWeekly, Weekdays: []time.Weekday{time.Tuesday}, Until: "2025-12-09"},
			want:  []string{"2025-11-25", "2025-12-02", "2025-12-09"},
		},
		{
			name:  "single day",
			first: "2025-12-25",
			rule:  Rule{Frequency: FrequencyDaily, Until: "2025-12-25"},
			want:  []string{"2025-12-25"},
		},
		{name: "until before first", first: "2025-12-25", rule: Rule{Frequency: FrequencyDaily, Until: "2025-12-24"}, err: ErrInvalidWindow},
		{name: "missing until", first: "2025-12-25", rule: Rule{Frequency: FrequencyDaily}, err: ErrInvalidWindow},
		{name: "weekly without days", first: "2025-12-01", rule: Rule{Frequency: FrequencyWeekly, Until: "2025-12-31"}, err: ErrNoWeekdays},
		{name: "unknown frequency", first: "2025-12-01", rule: Rule{Frequency: "monthly", Until: "2025-12-31"}, err: ErrInvalidFrequency},
		{name: "too long", first: "2025-01-01", rule: Rule{Frequency: FrequencyDaily, Until: "2026-12-31"}, err: ErrTooManyOccurrences},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := engine.Dates(tt.first, tt.rule)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Dates returned error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Dates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDatesAcrossDSTChange(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Brazil observed DST starting 2018-11-04.
	got, err := NewEngine(loc).Dates("2018-11-03", Rule{Frequency: FrequencyDaily, Until: "2018-11-05"})
	if err != nil {
		t.Fatalf("Dates returned error: %v", err)
	}
	if !slices.Equal(got, []string{"2018-11-03", "2018-11-04", "2018-11-05"}) {
		t.Fatalf("unexpected dates %v", got)
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	for input, want := range map[string]time.Weekday{"monday": time.Monday, "Tue": time.Tuesday, " SUNDAY ": time.Sunday} {
		got, err := ParseWeekday(input)
		if err != nil || got != want {
			t.Fatalf("ParseWeekday(%q) = %v, %v", input, got, err)
		}
	}
	if _, err := ParseWeekday("feriado"); err == nil {
		t.Fatalf("expected error for unknown weekday")
	}
}
