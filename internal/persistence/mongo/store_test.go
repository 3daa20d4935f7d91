package mongo

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/example/lab-scheduler/internal/persistence"
)

func TestBuildFilterCombinesRangeOnOneField(t *testing.T) {
	t.Parallel()

	got := buildFilter([]persistence.Filter{
		persistence.In("lab", []string{"Anatomy 1", "All"}),
		persistence.Where("date", persistence.OpGTE, "2025-11-01"),
		persistence.Where("date", persistence.OpLTE, "2025-11-30"),
	})
	want := bson.M{
		"lab":  bson.M{"$in": []string{"Anatomy 1", "All"}},
		"date": bson.M{"$gte": "2025-11-01", "$lte": "2025-11-30"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected filter\nwant %#v\ngot  %#v", want, got)
	}
}

func TestToRecordNormalizesDriverTypes(t *testing.T) {
	t.Parallel()

	rec := toRecord(bson.M{
		"_id":       "b1",
		"timeBlock": primitive.A{"07:00-09:10", "09:30-12:00"},
		"snapshot":  bson.M{"lab": "Anatomy 1"},
	})
	if rec.ID != "b1" {
		t.Fatalf("unexpected id %q", rec.ID)
	}
	if _, ok := rec.Doc["_id"]; ok {
		t.Fatalf("_id must not leak into the document")
	}

	b, err := persistence.DecodeBooking(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(b.TimeBlocks) != 2 {
		t.Fatalf("expected legacy blocks normalized, got %v", b.TimeBlocks)
	}
	if snap, ok := rec.Doc["snapshot"].(map[string]any); !ok || snap["lab"] != "Anatomy 1" {
		t.Fatalf("unexpected snapshot %#v", rec.Doc["snapshot"])
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	if err := mapError(mongo.ErrNoDocuments); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	if err := mapError(dup); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}
