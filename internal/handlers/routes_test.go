package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/palchat/backend/internal/models"
)

type recordingMessages struct {
	mu       sync.Mutex
	messages []models.Message
}

func (m *recordingMessages) Create(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *recordingMessages) ListBetween(context.Context, string, string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages...), nil
}

func (m *recordingMessages) saved() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Message(nil), m.messages...)
}

func TestRegisterRoutesRequiresBearerToken(t *testing.T) {
	manager := newTestManager()
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:    newInMemoryUserStore(),
		Sessions: manager,
		Friends:  newInMemoryFriendStore(),
		Messages: &recordingMessages{},
		Gatherer: prometheus.NewRegistry(),
	})

	for _, path := range []string{"/api/v1/me", "/api/v1/users", "/api/v1/friends", "/api/v1/messages/a/b"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
	}

	tokens, err := manager.Issue(context.Background(), models.Identity{ID: 1, Username: "alice"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", rec.Code)
	}

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /ws to be absent without a gateway, got %d", rec.Code)
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func TestRegisterRoutesLimitsWebsocketSeparately(t *testing.T) {
	manager := newTestManager()
	gateway := &gatewayStub{served: make(chan models.Identity, 1)}

	wsDenied := http.NewServeMux()
	RegisterRoutes(wsDenied, Dependencies{
		Users:     newInMemoryUserStore(),
		Sessions:  manager,
		Chat:      gateway,
		WSLimiter: denyLimiter{},
	})

	rec := httptest.NewRecorder()
	wsDenied.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected websocket limiter to reject with 429, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	wsDenied.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	if rec.Code == http.StatusTooManyRequests {
		t.Fatal("login must not be limited by the websocket budget")
	}

	authDenied := http.NewServeMux()
	RegisterRoutes(authDenied, Dependencies{
		Users:       newInMemoryUserStore(),
		Sessions:    manager,
		Chat:        gateway,
		AuthLimiter: denyLimiter{},
	})

	rec = httptest.NewRecorder()
	authDenied.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected websocket upgrade to ignore the auth budget and fail auth with 401, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	authDenied.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected auth limiter to reject login with 429, got %d", rec.Code)
	}
}
