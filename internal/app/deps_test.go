package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/palchat/backend/internal/config"
	"github.com/palchat/backend/internal/export"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Ping(context.Context) error { return nil }

func (fakePool) Close() {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = "test-secret"
	cfg.ObjectStore = config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	rt, err := buildDependencies(context.Background(), fakePool{}, cfg, prometheus.NewRegistry(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := rt.shutdown(ctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}()

	deps := rt.deps
	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Friends == nil || deps.Messages == nil {
		t.Fatal("expected friend and message repositories to be configured")
	}
	if deps.Presence == nil {
		t.Fatal("expected presence registry to be configured")
	}
	if deps.Chat == nil || deps.Upgrader == nil {
		t.Fatal("expected chat gateway and upgrader to be configured")
	}
	if deps.Exports == nil || deps.Exporter == nil {
		t.Fatal("expected export components to be configured")
	}
	if deps.AuthLimiter == nil || deps.WSLimiter == nil {
		t.Fatal("expected auth and websocket rate limiters to be configured")
	}
	if deps.AuthLimiter == deps.WSLimiter {
		t.Fatal("websocket upgrades must not share the auth rate limiter")
	}
	if deps.Gatherer == nil || deps.DB == nil {
		t.Fatal("expected metrics gatherer and database pinger to be configured")
	}
}

func TestBuildDependenciesWithoutObjectStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = "test-secret"
	cfg.ObjectStore = config.ObjectStoreConfig{}

	rt, err := buildDependencies(context.Background(), fakePool{}, cfg, prometheus.NewRegistry(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = rt.shutdown(context.Background()) }()

	if _, err := rt.exporter.Enqueue(context.Background(), "alice", "bob"); !errors.Is(err, export.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable got %v", err)
	}
}

func TestRuntimeShutdownClosesHub(t *testing.T) {
	cfg := config.Defaults()
	cfg.JWTSecret = "test-secret"

	rt, err := buildDependencies(context.Background(), fakePool{}, cfg, prometheus.NewRegistry(), discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := rt.shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := rt.shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown should be a no-op: %v", err)
	}
	if rt.hub.Len() != 0 {
		t.Fatalf("expected no registered clients, got %d", rt.hub.Len())
	}
}
