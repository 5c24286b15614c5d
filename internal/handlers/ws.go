package handlers

import (
	"context"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/palchat/backend/internal/logging"
)

// ChatHandler authenticates and upgrades live chat connections.
type ChatHandler struct {
	Sessions SessionManager
	Gateway  ChatGateway
	Upgrader *websocket.Upgrader
}

// Handle implements GET /ws. The credential is read from the token query
// parameter or the Authorization header and verified before the upgrade, so a
// rejected caller never gets a session.
func (h ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}

	identity, err := h.Sessions.Verify(token)
	if err != nil {
		logger.Warn("websocket authentication failed", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	upgrader := h.Upgrader
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.Gateway.Serve(context.WithoutCancel(ctx), conn, identity)
}

// NewUpgrader builds an upgrader that accepts the listed origins. An empty
// list keeps the same-host check and "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	switch {
	case len(allowedOrigins) == 0:
	case slices.Contains(allowedOrigins, "*"):
		upgrader.CheckOrigin = func(*http.Request) bool { return true }
	default:
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		}
	}
	return upgrader
}
