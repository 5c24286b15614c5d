package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/palchat/backend/internal/metrics"
	"github.com/palchat/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	authHandler := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	users := UserHandler{Users: deps.Users, Presence: deps.Presence}
	friends := FriendHandler{Friends: deps.Friends}
	messages := MessageHandler{Friends: deps.Friends, Messages: deps.Messages}
	exports := ExportHandler{Friends: deps.Friends, Exports: deps.Exports, Exporter: deps.Exporter}
	chatHandler := ChatHandler{Sessions: deps.Sessions, Gateway: deps.Chat, Upgrader: deps.Upgrader}

	limited := middleware.RateLimit(deps.AuthLimiter, "auth")
	wsLimited := middleware.RateLimit(deps.WSLimiter, "ws")
	authed := middleware.RequireIdentity(deps.Sessions)

	mux.HandleFunc("/healthz", health.Handle)
	if deps.Gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	mux.Handle("/api/v1/auth/register", limited(http.HandlerFunc(authHandler.Register)))
	mux.Handle("/api/v1/auth/login", limited(http.HandlerFunc(authHandler.Login)))
	mux.Handle("/api/v1/auth/refresh", limited(http.HandlerFunc(authHandler.Refresh)))
	mux.Handle("/api/v1/me", authed(http.HandlerFunc(authHandler.Me)))
	mux.Handle("/api/v1/users", authed(http.HandlerFunc(users.List)))
	mux.Handle("/api/v1/friends", authed(http.HandlerFunc(friends.List)))
	mux.Handle("/api/v1/friends/request", authed(http.HandlerFunc(friends.Request)))
	mux.Handle("/api/v1/friends/{requestID}", authed(http.HandlerFunc(friends.Respond)))
	mux.Handle("/api/v1/messages/{user1}/{user2}", authed(http.HandlerFunc(messages.History)))
	mux.Handle("/api/v1/exports", authed(http.HandlerFunc(exports.Create)))
	mux.Handle("/api/v1/exports/{exportID}", authed(http.HandlerFunc(exports.Get)))

	if deps.Chat != nil {
		mux.Handle("/ws", wsLimited(http.HandlerFunc(chatHandler.Handle)))
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Friends     FriendStore
	Messages    MessageStore
	Presence    PresenceReader
	Exports     ExportStore
	Exporter    TranscriptExporter
	Chat        ChatGateway
	Upgrader    *websocket.Upgrader
	AuthLimiter middleware.RateLimiter
	WSLimiter   middleware.RateLimiter
	DB          Pinger
	Gatherer    prometheus.Gatherer
}
