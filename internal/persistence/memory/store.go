// Package memory provides an in-process DocumentStore used for development
// runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/example/lab-scheduler/internal/persistence"
)

// UniqueIndex rejects a commit when two documents in the collection that
// satisfy When share the same values for Fields. Canonical, when set for a
// field, rewrites its value before comparison.
type UniqueIndex struct {
	Name       string
	Collection string
	Fields     []string
	Canonical  map[string]func(any) any
	When       func(persistence.Document) bool
}

// ActiveBookingSlot mirrors the partial unique index the SQL backends create
// on (lab, startAt) for pending and approved bookings.
func ActiveBookingSlot() UniqueIndex {
	return UniqueIndex{
		Name:       "idx_bookings_active_slot",
		Collection: persistence.CollectionBookings,
		Fields:     []string{"lab", "startAt"},
		Canonical:  map[string]func(any) any{"startAt": canonicalInstant},
		When: func(doc persistence.Document) bool {
			status, _ := doc["status"].(string)
			return status == "pending" || status == "approved"
		},
	}
}

// Option configures a Store.
type Option func(*Store)

// WithIndexes replaces the unique indexes enforced on commit.
func WithIndexes(indexes ...UniqueIndex) Option {
	return func(s *Store) {
		s.indexes = append([]UniqueIndex(nil), indexes...)
	}
}

// Store keeps documents in maps guarded by a single lock. Commit stages every
// write on copies of the touched collections and swaps them in only after
// index checks pass.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]persistence.Document
	indexes     []UniqueIndex
}

// New returns an empty store enforcing the active booking slot index unless
// options say otherwise.
func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]persistence.Document),
		indexes:     []UniqueIndex{ActiveBookingSlot()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Query implements persistence.DocumentStore.
func (s *Store) Query(ctx context.Context, q persistence.Query) ([]persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Record
	for id, doc := range s.collections[q.Collection] {
		if persistence.Matches(doc, q.Filters) {
			out = append(out, persistence.Record{ID: id, Doc: doc.Clone()})
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "createdAt"
	}
	persistence.SortRecords(out, orderBy, q.Descending)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Get implements persistence.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return persistence.Record{}, persistence.ErrNotFound
	}
	return persistence.Record{ID: id, Doc: doc.Clone()}, nil
}

// Commit implements persistence.DocumentStore.
func (s *Store) Commit(ctx context.Context, writes []persistence.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := persistence.ValidateWrites(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string]persistence.Document)
	stage := func(name string) map[string]persistence.Document {
		if coll, ok := staged[name]; ok {
			return coll
		}
		coll := make(map[string]persistence.Document, len(s.collections[name]))
		for id, doc := range s.collections[name] {
			coll[id] = doc
		}
		staged[name] = coll
		return coll
	}

	for _, w := range persistence.OrderedWrites(writes) {
		coll := stage(w.Collection)
		switch w.Kind {
		case persistence.WriteSet:
			coll[w.ID] = w.Doc.Clone()
		case persistence.WriteUpdate:
			existing, ok := coll[w.ID]
			if !ok {
				return fmt.Errorf("memory: update %s/%s: %w", w.Collection, w.ID, persistence.ErrNotFound)
			}
			merged := existing.Clone()
			for k, v := range w.Doc {
				merged[k] = v
			}
			coll[w.ID] = merged
		case persistence.WriteDelete:
			delete(coll, w.ID)
		}
	}

	for name, coll := range staged {
		if err := s.checkIndexes(name, coll); err != nil {
			return err
		}
	}

	for name, coll := range staged {
		s.collections[name] = coll
	}
	return nil
}

func (s *Store) checkIndexes(collection string, docs map[string]persistence.Document) error {
	for _, idx := range s.indexes {
		if idx.Collection != collection {
			continue
		}
		seen := make(map[string]string, len(docs))
		for id, doc := range docs {
			if idx.When != nil && !idx.When(doc) {
				continue
			}
			key := indexKey(doc, idx)
			if other, ok := seen[key]; ok {
				return fmt.Errorf("memory: %s conflict between %s and %s: %w", idx.Name, other, id, persistence.ErrDuplicate)
			}
			seen[key] = id
		}
	}
	return nil
}

func indexKey(doc persistence.Document, idx UniqueIndex) string {
	parts := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		value := doc[f]
		if canon, ok := idx.Canonical[f]; ok {
			value = canon(value)
		}
		parts[i] = fmt.Sprint(value)
	}
	return strings.Join(parts, "\x00")
}

func canonicalInstant(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return persistence.CanonicalTime(s)
}
