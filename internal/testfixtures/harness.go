package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/cache"
	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/memory"
	"github.com/example/lab-scheduler/internal/persistence/sqlite"
	"github.com/example/lab-scheduler/internal/persistence/sqlite/migration"
)

// Harness wires every application service over one store with a recording
// notification transport, a fixed clock and deterministic ids.
type Harness struct {
	Catalog      *catalog.Catalog
	Store        persistence.DocumentStore
	Repos        *persistence.Repositories
	Stores       application.Stores
	Transport    *notify.Recorder
	Router       *notify.Router
	Clock        *Clock
	IDs          *IDGenerator
	Cache        cache.AvailabilityCache
	Activity     *application.ActivityLog
	Availability *application.AvailabilityService
	Proposals    *application.ProposalService
	Bookings     *application.BookingService
	Events       *application.EventService
}

// HarnessOption adjusts harness construction.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	store persistence.DocumentStore
	cache cache.AvailabilityCache
	wrap  func(application.Stores) application.Stores
}

// WithStore runs the harness over a specific document store.
func WithStore(store persistence.DocumentStore) HarnessOption {
	return func(c *harnessConfig) { c.store = store }
}

// WithCache enables an availability cache.
func WithCache(c cache.AvailabilityCache) HarnessOption {
	return func(cfg *harnessConfig) { cfg.cache = c }
}

// WithStores lets a test decorate the persistence ports, e.g. to inject failures.
func WithStores(wrap func(application.Stores) application.Stores) HarnessOption {
	return func(c *harnessConfig) { c.wrap = wrap }
}

// NewHarness builds a harness over an in-memory store unless WithStore is given.
func NewHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()

	cfg := harnessConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.New()
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		Catalog:   Catalog(),
		Store:     cfg.store,
		Repos:     persistence.NewRepositories(cfg.store),
		Transport: &notify.Recorder{},
		Clock:     NewClock(ReferenceTime()),
		IDs:       NewIDGenerator("rec"),
		Cache:     cfg.cache,
	}
	h.Stores = application.StoresFrom(h.Repos)
	if cfg.wrap != nil {
		h.Stores = cfg.wrap(h.Stores)
	}
	h.Router = notify.NewRouter(h.Catalog, notify.RouterConfig{})

	h.Activity = application.NewActivityLogWithLogger(h.Stores.Activity, NewIDGenerator("act").NextFunc(), h.Clock.NowFunc(), logger)
	h.Availability = application.NewAvailabilityServiceWithLogger(h.Catalog, h.Stores, cfg.cache, logger)
	collab := application.Collaborators{
		Availability: h.Availability,
		Notifier:     notify.NewDispatcher(h.Router, h.Transport, logger),
		Activity:     h.Activity,
		IDGenerator:  h.IDs.NextFunc(),
		Now:          h.Clock.NowFunc(),
		Logger:       logger,
	}
	h.Proposals = application.NewProposalService(h.Catalog, h.Stores, collab)
	h.Bookings = application.NewBookingService(h.Catalog, h.Stores, h.Proposals, collab)
	h.Events = application.NewEventService(h.Catalog, h.Stores, collab)
	return h
}

// NewSQLiteHarness builds a harness over a migrated temp-dir SQLite store.
func NewSQLiteHarness(tb testing.TB, opts ...HarnessOption) *Harness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "labs.db")
	store, err := sqlite.Open(context.Background(), migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return NewHarness(tb, append(opts, WithStore(store))...)
}

// SeedBookings stores bookings directly, bypassing the services.
func (h *Harness) SeedBookings(tb testing.TB, fixtures ...BookingFixture) []domain.Booking {
	tb.Helper()
	out := make([]domain.Booking, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, f.Booking(h.Catalog))
	}
	if err := h.Repos.ApplyBatch(context.Background(), persistence.Batch{PutBookings: out}); err != nil {
		tb.Fatalf("seed bookings: %v", err)
	}
	return out
}

// SeedEvents stores events directly.
func (h *Harness) SeedEvents(tb testing.TB, fixtures ...EventFixture) []domain.Event {
	tb.Helper()
	out := make([]domain.Event, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, f.Event(h.Catalog))
	}
	if err := h.Repos.ApplyBatch(context.Background(), persistence.Batch{PutEvents: out}); err != nil {
		tb.Fatalf("seed events: %v", err)
	}
	return out
}

// MustBooking loads a booking or fails the test.
func (h *Harness) MustBooking(tb testing.TB, id string) domain.Booking {
	tb.Helper()
	b, err := h.Repos.Bookings.GetBooking(context.Background(), id)
	if err != nil {
		tb.Fatalf("load booking %s: %v", id, err)
	}
	return b
}
