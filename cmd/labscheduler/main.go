package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/lab-scheduler/internal/application"
	"github.com/example/lab-scheduler/internal/cache"
	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/config"
	httptransport "github.com/example/lab-scheduler/internal/http"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/notify/rabbitmq"
	"github.com/example/lab-scheduler/internal/notify/telegram"
	"github.com/example/lab-scheduler/internal/notify/websocket"
	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/memory"
	"github.com/example/lab-scheduler/internal/persistence/mongo"
	"github.com/example/lab-scheduler/internal/persistence/postgres"
	"github.com/example/lab-scheduler/internal/persistence/sqlite"
	"github.com/example/lab-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/lab-scheduler/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("lab scheduler stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{ServiceName: cfg.ServiceName, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("lab scheduler API listening",
		"addr", server.Addr,
		"store", cfg.Store.Backend,
		"cache", cfg.Cache.Backend,
		"transports", cfg.Notify.Transports,
		"timezone", cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// app is the wired service graph.
type app struct {
	handler http.Handler
	hub     *websocket.Hub
	closers []func() error
	logger  *slog.Logger
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", "error", err)
		}
	}
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cat := catalog.Default(loc)

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	availabilityCache, closeCache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeCache)

	transport, hub, closeTransports, err := newTransport(cfg.Notify, logger)
	if err != nil {
		return nil, err
	}
	a.hub = hub
	a.closers = append(a.closers, closeTransports)

	routing, err := routerConfig(cfg.Notify, cat)
	if err != nil {
		return nil, err
	}
	router := notify.NewRouter(cat, routing)
	stores := application.StoresFrom(persistence.NewRepositories(store))
	activity := application.NewActivityLogWithLogger(stores.Activity, uuid.NewString, time.Now, logger)
	availability := application.NewAvailabilityServiceWithLogger(cat, stores, availabilityCache, logger)
	collab := application.Collaborators{
		Availability: availability,
		Notifier:     notify.NewDispatcher(router, transport, logger),
		Activity:     activity,
		IDGenerator:  uuid.NewString,
		Now:          time.Now,
		Logger:       logger,
	}
	proposals := application.NewProposalService(cat, stores, collab)
	bookings := application.NewBookingService(cat, stores, proposals, collab)
	events := application.NewEventService(cat, stores, collab)

	routerCfg := httptransport.RouterConfig{
		Verifier:  httptransport.NewJWTVerifier(cfg.JWTSecret, nil),
		Logger:    logger,
		Schedule:  httptransport.NewScheduleHandler(cat, availability, logger),
		Proposals: httptransport.NewProposalHandler(proposals, logger),
		Bookings:  httptransport.NewBookingHandler(bookings, loc, logger),
		Events:    httptransport.NewEventHandler(events, loc, logger),
		Activity:  httptransport.NewActivityHandler(activity, loc, logger),
	}
	if hub != nil {
		routerCfg.Live = hub
	}
	a.handler = httptransport.NewRouter(routerCfg)
	return a, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (persistence.DocumentStore, func() error, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		store := memory.New()
		return store, store.Close, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	case config.StoreMongo:
		store, err := mongo.Open(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.AvailabilityCache, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.CacheNone, "":
		return cache.Nop{}, noop, nil
	case config.CacheMemory:
		return cache.NewLocal(cfg.TTL), noop, nil
	case config.CacheRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedis(client, "", cfg.TTL, logger), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// newTransport fans out to every enabled transport. The hub is returned when
// websocket delivery is enabled so the router can mount it.
func newTransport(cfg config.NotifyConfig, logger *slog.Logger) (notify.Transport, *websocket.Hub, func() error, error) {
	var (
		fanout  notify.Fanout
		hub     *websocket.Hub
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	for _, name := range cfg.Transports {
		switch name {
		case config.TransportLog:
			fanout = append(fanout, notify.NewLogTransport(logger))
		case config.TransportRabbitMQ:
			pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
			if err != nil {
				_ = closeAll()
				return nil, nil, nil, err
			}
			fanout = append(fanout, pub)
			closers = append(closers, pub.Close)
		case config.TransportTelegram:
			fanout = append(fanout, telegram.New(telegram.Config{Token: cfg.TelegramToken, Chats: cfg.TelegramChats, UserChats: cfg.TelegramUsers}))
		case config.TransportWebsocket:
			hub = websocket.NewHub(allowOrigins(cfg.WebsocketOrigins), logger)
			fanout = append(fanout, hub)
			closers = append(closers, func() error { hub.Close(); return nil })
		default:
			_ = closeAll()
			return nil, nil, nil, fmt.Errorf("unknown notification transport %q", name)
		}
	}
	if len(fanout) == 0 {
		fanout = append(fanout, notify.NewLogTransport(logger))
	}
	return fanout, hub, closeAll, nil
}

// allowOrigins accepts any origin when the list is empty.
func allowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func routerConfig(cfg config.NotifyConfig, cat *catalog.Catalog) (notify.RouterConfig, error) {
	rc := notify.RouterConfig{}

	if table := cfg.RoutingTable(); len(table) > 0 {
		rc.Table = notify.DefaultTable()
		for name, channels := range table {
			labType := catalog.LabType(name)
			if !slices.Contains(cat.LabTypes(), labType) {
				return notify.RouterConfig{}, fmt.Errorf("notify table: unknown lab type %q", name)
			}
			rc.Table[labType] = channels
		}
	}

	if len(cfg.HTMLChannels) == 0 && len(cfg.Threads) == 0 {
		return rc, nil
	}
	rc.Channels = make(map[string]notify.ChannelConfig, len(cfg.HTMLChannels)+len(cfg.Threads))
	for _, id := range cfg.HTMLChannels {
		c := rc.Channels[id]
		c.Format = notify.FormatHTML
		rc.Channels[id] = c
	}
	for id, thread := range cfg.Threads {
		c := rc.Channels[id]
		c.ThreadID = thread
		rc.Channels[id] = c
	}
	return rc, nil
}
