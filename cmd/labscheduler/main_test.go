package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/example/lab-scheduler/internal/cache"
	"github.com/example/lab-scheduler/internal/catalog"
	"github.com/example/lab-scheduler/internal/config"
	httptransport "github.com/example/lab-scheduler/internal/http"
	"github.com/example/lab-scheduler/internal/notify"
	"github.com/example/lab-scheduler/internal/testfixtures"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		HTTPPort:  8080,
		JWTSecret: "main-test-secret",
		Location:  testfixtures.Institution,
		Store:     config.StoreConfig{Backend: config.StoreMemory},
		Cache:     config.CacheConfig{Backend: config.CacheMemory, TTL: time.Minute},
		Notify:    config.NotifyConfig{Transports: []string{config.TransportLog, config.TransportWebsocket}},
	}
}

func TestBuildServesAuthenticatedRoutes(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	a, err := build(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	t.Cleanup(a.close)
	if a.hub == nil {
		t.Fatalf("expected the websocket hub to be wired")
	}

	health := httptest.NewRecorder()
	a.handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", health.Code)
	}

	token, err := httptransport.NewJWTVerifier(cfg.JWTSecret, nil).IssueToken(testfixtures.Coordinator, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Anatomy 1") {
		t.Fatalf("catalog: unexpected response %d: %s", rec.Code, rec.Body)
	}
}

func TestOpenStoreSQLite(t *testing.T) {
	t.Parallel()
	store, closeStore, err := openStore(context.Background(), config.StoreConfig{
		Backend:    config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "labs.db"),
	}, discardLogger())
	if err != nil {
		t.Fatalf("openStore returned error: %v", err)
	}
	t.Cleanup(func() { _ = closeStore() })
	if store == nil {
		t.Fatalf("expected a store")
	}
}

func TestUnknownBackendsAreRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, _, err := openStore(ctx, config.StoreConfig{Backend: "cassandra"}, nil); err == nil {
		t.Fatalf("expected unknown store error")
	}
	if _, _, err := newCache(ctx, config.CacheConfig{Backend: "memcached"}, nil); err == nil {
		t.Fatalf("expected unknown cache error")
	}
	if _, _, _, err := newTransport(config.NotifyConfig{Transports: []string{"pigeon"}}, discardLogger()); err == nil {
		t.Fatalf("expected unknown transport error")
	}
}

func TestNewCache(t *testing.T) {
	t.Parallel()

	none, _, err := newCache(context.Background(), config.CacheConfig{Backend: config.CacheNone}, nil)
	if err != nil {
		t.Fatalf("newCache returned error: %v", err)
	}
	if _, ok := none.(cache.Nop); !ok {
		t.Fatalf("expected Nop cache, got %T", none)
	}
	local, _, err := newCache(context.Background(), config.CacheConfig{Backend: config.CacheMemory, TTL: time.Second}, nil)
	if err != nil {
		t.Fatalf("newCache returned error: %v", err)
	}
	if _, ok := local.(*cache.Local); !ok {
		t.Fatalf("expected local cache, got %T", local)
	}
}

func TestNewTransportDefaultsToLog(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	transport, hub, closeAll, err := newTransport(config.NotifyConfig{}, logger)
	if err != nil {
		t.Fatalf("newTransport returned error: %v", err)
	}
	defer closeAll()
	if hub != nil {
		t.Fatalf("websocket hub should be disabled")
	}
	if err := transport.Send(context.Background(), notify.Message{ChannelID: notify.ChannelGeneral, Text: "olá"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "channel="+notify.ChannelGeneral) {
		t.Fatalf("expected the log transport to record the message, got %q", buf.String())
	}
}

func TestAllowOrigins(t *testing.T) {
	t.Parallel()
	if allowOrigins(nil) != nil {
		t.Fatalf("empty list should accept any origin")
	}
	check := allowOrigins([]string{"https://labs.example.edu"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Fatalf("foreign origin accepted")
	}
	req.Header.Set("Origin", "https://labs.example.edu")
	if !check(req) {
		t.Fatalf("configured origin rejected")
	}
}

func TestRouterConfig(t *testing.T) {
	t.Parallel()
	cat := testfixtures.Catalog()

	t.Run("defaults without settings", func(t *testing.T) {
		rc, err := routerConfig(config.NotifyConfig{}, cat)
		if err != nil {
			t.Fatalf("routerConfig: %v", err)
		}
		if rc.Table != nil || rc.Channels != nil {
			t.Fatalf("expected zero config, got %+v", rc)
		}
	})

	t.Run("threads and html share a channel entry", func(t *testing.T) {
		rc, err := routerConfig(config.NotifyConfig{
			HTMLChannels: []string{notify.ChannelAnatomy},
			Threads:      map[string]string{notify.ChannelAnatomy: "42", notify.ChannelChemistry: "7"},
		}, cat)
		if err != nil {
			t.Fatalf("routerConfig: %v", err)
		}
		router := notify.NewRouter(cat, rc)
		if got := router.Channel(notify.ChannelAnatomy); got.ThreadID != "42" || got.Format != notify.FormatHTML {
			t.Fatalf("unexpected anatomy channel %+v", got)
		}
		if got := router.Channel(notify.ChannelChemistry); got.ThreadID != "7" || got.Format != notify.FormatPlain {
			t.Fatalf("unexpected chemistry channel %+v", got)
		}
	})

	t.Run("table overrides one lab type", func(t *testing.T) {
		rc, err := routerConfig(config.NotifyConfig{
			Table: map[string]string{"anatomy": "general|anatomy"},
		}, cat)
		if err != nil {
			t.Fatalf("routerConfig: %v", err)
		}
		if got := rc.Table[catalog.LabTypeAnatomy]; !slices.Equal(got, []string{notify.ChannelGeneral, notify.ChannelAnatomy}) {
			t.Fatalf("unexpected anatomy routing %v", got)
		}
		want := notify.DefaultTable()[catalog.LabTypeChemistry]
		if got := rc.Table[catalog.LabTypeChemistry]; !slices.Equal(got, want) {
			t.Fatalf("chemistry routing changed: %v", got)
		}
	})

	t.Run("rejects unknown lab types", func(t *testing.T) {
		_, err := routerConfig(config.NotifyConfig{
			Table: map[string]string{"astronomy": "general"},
		}, cat)
		if err == nil || !strings.Contains(err.Error(), "astronomy") {
			t.Fatalf("expected unknown lab type error, got %v", err)
		}
	})
}

func TestNewLoggerLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
