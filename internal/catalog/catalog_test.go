package catalog

import (
	"errors"
	"testing"
	"time"
)

func TestCatalogLabLookup(t *testing.T) {
	t.Parallel()

	c := Default(time.UTC)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "by id", ref: "anatomy-1", want: "Anatomy 1"},
		{name: "by name", ref: "Anatomy 1", want: "Anatomy 1"},
		{name: "case insensitive", ref: "  microscopy 2 ", want: "Microscopy 2"},
		{name: "unknown", ref: "Physics 9", wantErr: ErrUnknownLab},
		{name: "all labs marker is not a lab", ref: "All", wantErr: ErrUnknownLab},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lab, err := c.Lab(tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lab.Name != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, lab.Name)
			}
		})
	}
}

func TestCatalogResolveUsesLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("BRT", -3*60*60)
	c := Default(loc)

	start, end, err := c.Resolve("2025-11-25", "07:00-09:10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := time.Date(2025, 11, 25, 10, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 11, 25, 12, 10, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("unexpected window %s - %s", start.UTC(), end.UTC())
	}
}

func TestCatalogResolveErrors(t *testing.T) {
	t.Parallel()

	c := Default(time.UTC)
	if _, _, err := c.Resolve("25/11/2025", "07:00-09:10"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date, got %v", err)
	}
	if _, _, err := c.Resolve("2025-11-25", "07:00-08:00"); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("expected unknown block, got %v", err)
	}
}

func TestCatalogBlocks(t *testing.T) {
	t.Parallel()

	c := Default(time.UTC)
	blocks := c.Blocks()
	if len(blocks) != 6 {
		t.Fatalf("expected six daily blocks, got %d", len(blocks))
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].End >= blocks[i].Start {
			t.Fatalf("blocks %s and %s overlap", blocks[i-1].Value, blocks[i].Value)
		}
	}

	sorted := c.SortBlocks([]string{"20:30-22:00", "07:00-09:10", "bogus", "07:00-09:10"})
	if len(sorted) != 2 || sorted[0] != "07:00-09:10" || sorted[1] != "20:30-22:00" {
		t.Fatalf("unexpected sorted blocks %v", sorted)
	}
}

func TestCatalogLabsOfType(t *testing.T) {
	t.Parallel()

	c := Default(time.UTC)
	labs := c.LabsOfType(LabTypeAnatomy)
	if len(labs) != 2 {
		t.Fatalf("expected two anatomy labs, got %d", len(labs))
	}
	if typ, ok := c.LabType("Pharmaceutical Technology"); !ok || typ != LabTypePharmaceutical {
		t.Fatalf("unexpected lab type %q ok=%v", typ, ok)
	}
}
