package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palchat/backend/internal/auth"
	"github.com/palchat/backend/internal/chat"
	"github.com/palchat/backend/internal/config"
	"github.com/palchat/backend/internal/db"
	"github.com/palchat/backend/internal/export"
	"github.com/palchat/backend/internal/handlers"
	"github.com/palchat/backend/internal/metrics"
	"github.com/palchat/backend/internal/middleware"
	"github.com/palchat/backend/internal/presence"
	"github.com/palchat/backend/internal/repositories"
	"github.com/palchat/backend/internal/storage"
)

const (
	rateLimiterTTL   = 10 * time.Minute
	exportJobTimeout = 2 * time.Minute
)

// runtime holds the long-lived components that need an orderly shutdown.
type runtime struct {
	deps     handlers.Dependencies
	metrics  *metrics.Metrics
	hub      *chat.Hub
	presence *presence.Registry
	exporter *export.Exporter
}

// shutdown closes every live websocket session and drains queued exports.
// Hijacked connections are not tracked by http.Server, so the hub has to be
// closed explicitly.
func (r *runtime) shutdown(ctx context.Context) error {
	r.hub.Close()
	if err := r.exporter.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown exporter: %w", err)
	}
	return nil
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers and the chat gateway.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, registry *prometheus.Registry, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := metrics.New(registry)

	users := repositories.NewPostgresUserRepository(pool)
	friends := repositories.NewPostgresFriendRepository(pool)
	messages := repositories.NewPostgresMessageRepository(pool)
	exports := repositories.NewPostgresExportRepository(pool)

	sessions := auth.NewManager(
		[]byte(cfg.JWTSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		repositories.NewPostgresSessionStore(pool),
	)

	hub := chat.NewHub(logger, m)
	online := presence.NewRegistry(hub, presence.WithObserver(m.SetOnline))
	service := chat.NewService(friends, messages, hub, m)
	gateway := chat.NewGateway(hub, online, service, chat.ClientOptions{
		SendBuffer:     cfg.Chat.SendBuffer,
		WriteWait:      cfg.Chat.WriteWait,
		PongWait:       cfg.Chat.PongWait,
		PingInterval:   cfg.Chat.PingInterval,
		MaxMessageSize: cfg.Chat.MaxMessageSize,
	}, m)

	// A nil AssetStorage makes export requests fail fast with
	// ErrStorageUnavailable; keep it an untyped nil when S3 is not configured.
	var assets export.AssetStorage
	if cfg.ObjectStore.Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		assets = s3Storage
	} else {
		logger.Info("object storage not configured, transcript exports disabled")
	}

	exporter := export.NewExporter(messages, assets, exports, export.Config{
		QueueSize:  cfg.Export.QueueSize,
		Workers:    cfg.Export.Workers,
		JobTimeout: exportJobTimeout,
	}, logger)

	authLimiter := middleware.NewIPRateLimiter(cfg.AuthLimit.Requests, cfg.AuthLimit.Window, cfg.AuthLimit.Burst, rateLimiterTTL)
	wsLimiter := middleware.NewIPRateLimiter(cfg.WSLimit.Requests, cfg.WSLimit.Window, cfg.WSLimit.Burst, rateLimiterTTL)

	return &runtime{
		deps: handlers.Dependencies{
			Users:       users,
			Sessions:    sessions,
			Friends:     friends,
			Messages:    messages,
			Presence:    online,
			Exports:     exports,
			Exporter:    exporter,
			Chat:        gateway,
			Upgrader:    handlers.NewUpgrader(cfg.Chat.AllowedOrigins),
			AuthLimiter: authLimiter,
			WSLimiter:   wsLimiter,
			DB:          pool,
			Gatherer:    registry,
		},
		metrics:  m,
		hub:      hub,
		presence: online,
		exporter: exporter,
	}, nil
}
