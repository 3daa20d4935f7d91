package http

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/catalog"
)

// queryList accepts both repeated keys and comma separated values.
func queryList(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// queryErrors collects malformed query parameters as field errors.
type queryErrors struct {
	fields map[string]string
}

func (e *queryErrors) add(field, message string) {
	if e.fields == nil {
		e.fields = make(map[string]string)
	}
	if _, ok := e.fields[field]; !ok {
		e.fields[field] = message
	}
}

func (e *queryErrors) err() error {
	if len(e.fields) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: e.fields}
}

func (e *queryErrors) limit(q url.Values) int {
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.add("limit", "limit must be a number")
		return 0
	}
	return n
}

// date parses a YYYY-MM-DD parameter as midnight in loc.
func (e *queryErrors) date(q url.Values, key string, loc *time.Location) time.Time {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(catalog.DateLayout, raw, loc)
	if err != nil {
		e.add(key, key+" must be YYYY-MM-DD")
		return time.Time{}
	}
	return t
}
