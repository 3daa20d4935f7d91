package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/lab-scheduler/internal/persistence"
)

func TestBuildSelect(t *testing.T) {
	t.Parallel()

	sql, args := buildSelect(persistence.Query{
		Collection: persistence.CollectionBookings,
		Filters: []persistence.Filter{
			persistence.In("lab", []string{"Anatomy 1", "Anatomy 2"}),
			persistence.Where("date", persistence.OpEqual, "2025-11-25"),
		},
		OrderBy: "startAt",
		Limit:   5,
	})

	want := []string{
		"collection = $1",
		"(body->>'lab') = ANY($2)",
		"(body->>'date') = $3",
		`ORDER BY (body->>'startAt') COLLATE "C" ASC, id ASC`,
		"LIMIT $4",
	}
	for _, fragment := range want {
		if !strings.Contains(sql, fragment) {
			t.Errorf("expected %q in %s", fragment, sql)
		}
	}
	if len(args) != 4 {
		t.Fatalf("expected four args, got %d", len(args))
	}
	if labs, ok := args[1].([]string); !ok || len(labs) != 2 {
		t.Fatalf("expected lab list argument, got %#v", args[1])
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: uniqueViolation, ConstraintName: "idx_bookings_active_slot"}, want: persistence.ErrDuplicate},
		{name: "check", err: &pgconn.PgError{Code: checkViolation}, want: persistence.ErrConstraintViolation},
		{name: "network", err: errors.New("connection refused"), want: persistence.ErrUnavailable},
		{name: "wrapped not found", err: fmt.Errorf("update: %w", persistence.ErrNotFound), want: persistence.ErrNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mapError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("mapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
