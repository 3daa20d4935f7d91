package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
)

var tracer = otel.Tracer("github.com/example/lab-scheduler/internal/application")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}

// canonicalLabs resolves references to catalog names, dropping duplicates
// and keeping order. allowAll lets "All" through as is.
func canonicalLabs(cat *catalog.Catalog, refs []string, field string, allowAll bool, vErr *ValidationError) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		name := ref
		if strings.EqualFold(ref, domain.AllLabs) {
			if !allowAll {
				vErr.add(field, "\"All\" is only valid for events")
				continue
			}
			name = domain.AllLabs
		} else {
			lab, err := cat.Lab(ref)
			if err != nil {
				vErr.add(field, fmt.Sprintf("unknown lab %q", ref))
				continue
			}
			name = lab.Name
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// canonicalBlocks validates block values, dropping duplicates and keeping order.
func canonicalBlocks(cat *catalog.Catalog, values []string, vErr *ValidationError) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := cat.Block(v); err != nil {
			vErr.add("timeBlocks", fmt.Sprintf("unknown time block %q", v))
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func validateDate(cat *catalog.Catalog, date string, vErr *ValidationError) string {
	date = strings.TrimSpace(date)
	if date == "" {
		vErr.add("date", "date is required")
		return ""
	}
	if _, err := cat.ParseDate(date); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	return date
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}

func sortStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

// periodRange returns the inclusive date bounds of a preset in loc.
func periodRange(period ListPeriod, reference time.Time, loc *time.Location) (from, to string, ok bool) {
	if period == ListPeriodNone {
		return "", "", false
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	var start, end time.Time
	switch period {
	case ListPeriodDay:
		start = startOfDay(reference, loc)
		end = start
	case ListPeriodWeek:
		start = startOfWeek(reference, loc)
		end = start.AddDate(0, 0, 6)
	case ListPeriodMonth:
		start = startOfMonth(reference, loc)
		end = start.AddDate(0, 1, -1)
	default:
		return "", "", false
	}
	return start.Format(catalog.DateLayout), end.Format(catalog.DateLayout), true
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func startOfWeek(t time.Time, loc *time.Location) time.Time {
	start := startOfDay(t, loc)
	// Monday starts the week; Go's Sunday is 0.
	offset := (int(start.Weekday()) + 6) % 7
	return start.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time, loc *time.Location) time.Time {
	start := startOfDay(t, loc)
	return time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc)
}

// applyPeriod fills empty bounds from a period preset.
func applyPeriod(cat *catalog.Catalog, period ListPeriod, reference time.Time, from, to *string, vErr *ValidationError) {
	switch period {
	case ListPeriodNone, ListPeriodDay, ListPeriodWeek, ListPeriodMonth:
	default:
		vErr.add("period", "period must be day, week or month")
		return
	}
	start, end, ok := periodRange(period, reference, cat.Location())
	if !ok {
		return
	}
	if *from == "" {
		*from = start
	}
	if *to == "" {
		*to = end
	}
}

func validateRange(cat *catalog.Catalog, from, to string, vErr *ValidationError) {
	if from != "" {
		if _, err := cat.ParseDate(from); err != nil {
			vErr.add("from", "from must be YYYY-MM-DD")
		}
	}
	if to != "" {
		if _, err := cat.ParseDate(to); err != nil {
			vErr.add("to", "to must be YYYY-MM-DD")
		}
	}
	if from != "" && to != "" && to < from {
		vErr.add("to", "to must not be before from")
	}
}
