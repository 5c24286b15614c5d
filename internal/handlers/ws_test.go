package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palchat/backend/internal/chat"
	"github.com/palchat/backend/internal/models"
	"github.com/palchat/backend/internal/presence"
)

type gatewayStub struct {
	served chan models.Identity
}

func (g *gatewayStub) Serve(_ context.Context, conn chat.Conn, identity models.Identity) {
	g.served <- identity
	_ = conn.Close()
}

func TestChatHandlerRejectsBeforeUpgrade(t *testing.T) {
	gateway := &gatewayStub{served: make(chan models.Identity, 1)}
	handler := ChatHandler{Sessions: newTestManager(), Gateway: gateway}

	for _, target := range []string{"/ws", "/ws?token=garbage"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Connection", "upgrade")
		req.Header.Set("Upgrade", "websocket")
		handler.Handle(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", target, rec.Code)
		}
	}

	select {
	case identity := <-gateway.served:
		t.Fatalf("no session should start, got %+v", identity)
	default:
	}
}

func TestChatHandlerServesVerifiedIdentity(t *testing.T) {
	manager := newTestManager()
	tokens, err := manager.Issue(context.Background(), models.Identity{ID: 5, Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	gateway := &gatewayStub{served: make(chan models.Identity, 1)}
	server := httptest.NewServer(http.HandlerFunc(ChatHandler{Sessions: manager, Gateway: gateway}.Handle))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tokens.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case identity := <-gateway.served:
		if identity.Username != "alice" || identity.ID != 5 {
			t.Fatalf("unexpected identity %+v", identity)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway was not invoked")
	}
}

func TestChatRoundTripThroughRoutes(t *testing.T) {
	manager := newTestManager()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := chat.NewHub(logger, nil)
	registry := presence.NewRegistry(hub)
	friends := acceptedFriends(t, "alice", "bob")
	messages := &recordingMessages{}
	gateway := chat.NewGateway(hub, registry, chat.NewService(friends, messages, hub, nil), chat.ClientOptions{}, nil)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Sessions: manager,
		Friends:  friends,
		Presence: registry,
		Chat:     gateway,
		Upgrader: NewUpgrader(nil),
	})
	server := httptest.NewServer(mux)
	defer func() {
		hub.Close()
		server.Close()
	}()

	dial := func(username string) *websocket.Conn {
		tokens, err := manager.Issue(context.Background(), models.Identity{Username: username})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		header := http.Header{"Authorization": []string{"Bearer " + tokens.AccessToken}}
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
		if err != nil {
			t.Fatalf("dial %s: %v", username, err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}

	alice := dial("alice")
	bob := dial("bob")
	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		if err := conn.WriteJSON(map[string]any{"event": chat.EventJoin, "data": name}); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for !(registry.IsOnline("alice") && registry.IsOnline("bob")) {
		if time.Now().After(deadline) {
			t.Fatal("users never came online")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := alice.WriteJSON(map[string]any{
		"event": chat.EventPrivateMessage,
		"data":  chat.SendRequest{Content: "hey bob", ToUser: "bob"},
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = bob.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env chat.Envelope
		if err := bob.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		if env.Event != chat.EventPrivateMessage {
			continue
		}
		var msg chat.PrivateMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if msg.FromUser != "alice" || msg.Content != "hey bob" {
			t.Fatalf("unexpected message %+v", msg)
		}
		break
	}

	if len(messages.saved()) != 1 {
		t.Fatalf("expected one stored message, got %d", len(messages.saved()))
	}
}

func TestNewUpgraderOrigins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://chat.example.com")

	if NewUpgrader(nil).CheckOrigin != nil {
		t.Fatal("expected default same-origin check when no origins configured")
	}
	if !NewUpgrader([]string{"*"}).CheckOrigin(req) {
		t.Fatal("expected wildcard to allow any origin")
	}
	if !NewUpgrader([]string{"https://chat.example.com"}).CheckOrigin(req) {
		t.Fatal("expected listed origin to be allowed")
	}
	if NewUpgrader([]string{"https://other.example.com"}).CheckOrigin(req) {
		t.Fatal("expected unlisted origin to be rejected")
	}
}
