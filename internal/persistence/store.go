package persistence

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidField reports whether name can be used as a document field in a query.
// SQL backends splice field names into JSON paths, so only plain identifiers
// are accepted.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Collection names used by the repositories.
const (
	CollectionBookings = "bookings"
	CollectionEvents   = "events"
	CollectionActivity = "activity"
)

// Document is a schemaless record body. Values are strings, string lists,
// booleans or nil; timestamps are UTC strings in TimestampLayout.
type Document map[string]any

// Clone returns a copy of the document with list values copied too.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		switch typed := v.(type) {
		case []string:
			out[k] = append([]string(nil), typed...)
		case []any:
			out[k] = append([]any(nil), typed...)
		default:
			out[k] = v
		}
	}
	return out
}

// Op is a filter comparison operator.
type Op string

const (
	OpEqual Op = "=="
	OpGTE   Op = ">="
	OpLTE   Op = "<="
	OpIn    Op = "in"
)

// Filter constrains a single field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for an equality or comparison filter.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// In builds a set-membership filter.
func In(field string, values []string) Filter {
	return Filter{Field: field, Op: OpIn, Value: append([]string(nil), values...)}
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Validate enforces the limits shared by every backend: a known operator per
// filter and at most one set-membership filter per query.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	ins := 0
	for _, f := range q.Filters {
		if !ValidField(f.Field) {
			return fmt.Errorf("%w: invalid filter field %q", ErrInvalidQuery, f.Field)
		}
		switch f.Op {
		case OpEqual, OpGTE, OpLTE:
			if _, ok := f.Value.(string); !ok {
				return fmt.Errorf("%w: %s %s expects a string value", ErrInvalidQuery, f.Field, f.Op)
			}
		case OpIn:
			if _, ok := f.Value.([]string); !ok {
				return fmt.Errorf("%w: %s in expects a string list", ErrInvalidQuery, f.Field)
			}
			ins++
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	if ins > 1 {
		return fmt.Errorf("%w: at most one in filter per query", ErrInvalidQuery)
	}
	if q.OrderBy != "" && !ValidField(q.OrderBy) {
		return fmt.Errorf("%w: invalid order field %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// Record is a stored document and its identifier.
type Record struct {
	ID  string
	Doc Document
}

// WriteKind selects the effect of a batched write.
type WriteKind string

const (
	// WriteSet creates or fully replaces a document.
	WriteSet WriteKind = "set"
	// WriteUpdate merges fields into an existing document.
	WriteUpdate WriteKind = "update"
	// WriteDelete removes a document; missing documents are ignored.
	WriteDelete WriteKind = "delete"
)

// Write is one operation inside an atomic batch.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Doc        Document
}

// DocumentStore is the storage boundary. Commit applies every write or none.
type DocumentStore interface {
	Query(ctx context.Context, q Query) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Commit(ctx context.Context, writes []Write) error
}

// Set stores a single document.
func Set(ctx context.Context, store DocumentStore, collection, id string, doc Document) error {
	return store.Commit(ctx, []Write{{Kind: WriteSet, Collection: collection, ID: id, Doc: doc}})
}

// Update merges fields into a single document.
func Update(ctx context.Context, store DocumentStore, collection, id string, fields Document) error {
	return store.Commit(ctx, []Write{{Kind: WriteUpdate, Collection: collection, ID: id, Doc: fields}})
}

// Delete removes a single document.
func Delete(ctx context.Context, store DocumentStore, collection, id string) error {
	return store.Commit(ctx, []Write{{Kind: WriteDelete, Collection: collection, ID: id}})
}

// ValidateWrites checks a batch before it reaches a backend.
func ValidateWrites(writes []Write) error {
	for i, w := range writes {
		if w.Collection == "" || w.ID == "" {
			return fmt.Errorf("%w: write %d needs collection and id", ErrInvalidQuery, i)
		}
		switch w.Kind {
		case WriteSet, WriteUpdate, WriteDelete:
		default:
			return fmt.Errorf("%w: write %d has unknown kind %q", ErrInvalidQuery, i, w.Kind)
		}
	}
	return nil
}

// OrderedWrites returns the batch with deletes first, keeping relative order
// otherwise. Replacing a record in one batch then never trips the active-slot
// unique index on backends that check it per statement.
func OrderedWrites(writes []Write) []Write {
	out := append([]Write(nil), writes...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind == WriteDelete && out[j].Kind != WriteDelete
	})
	return out
}

// Matches evaluates filters against a document in memory. Backends that cannot
// push every filter down use it for the remainder.
func Matches(doc Document, filters []Filter) bool {
	for _, f := range filters {
		value, ok := doc[f.Field]
		if !ok {
			return false
		}
		current, isString := value.(string)
		switch f.Op {
		case OpEqual:
			if !isString || current != f.Value.(string) {
				return false
			}
		case OpGTE:
			if !isString || current < f.Value.(string) {
				return false
			}
		case OpLTE:
			if !isString || current > f.Value.(string) {
				return false
			}
		case OpIn:
			if !isString || !containsString(f.Value.([]string), current) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SortRecords orders records by a string field, then by id.
func SortRecords(records []Record, field string, descending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].Doc[field].(string)
		b, _ := records[j].Doc[field].(string)
		if a == b {
			if descending {
				return records[i].ID > records[j].ID
			}
			return records[i].ID < records[j].ID
		}
		if descending {
			return a > b
		}
		return a < b
	})
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
