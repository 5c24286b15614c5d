// Package chat runs live websocket sessions: presence admission, private
// message routing and per-connection lifecycle.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/palchat/backend/internal/logging"
	"github.com/palchat/backend/internal/metrics"
	"github.com/palchat/backend/internal/models"
)

// Presence is the registry a session admits itself to after joining. Welcome
// must call fn with the current snapshot while holding the registry lock.
type Presence interface {
	Admit(username, connID string)
	RemoveConn(username, connID string) bool
	Welcome(fn func(snapshot map[string]string))
}

// Sender handles inbound private messages for a joined session.
type Sender interface {
	SendPrivate(ctx context.Context, fromUser string, req SendRequest) (int, error)
}

// Gateway runs sessions for upgraded connections.
type Gateway struct {
	hub      *Hub
	presence Presence
	sender   Sender
	opts     ClientOptions
	metrics  *metrics.Metrics
}

// NewGateway wires a Gateway.
func NewGateway(hub *Hub, presence Presence, sender Sender, opts ClientOptions, m *metrics.Metrics) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: presence,
		sender:   sender,
		opts:     opts,
		metrics:  m,
	}
}

// inboxSize bounds the frames read but not yet handled for one session.
const inboxSize = 32

// Serve runs the session for an authenticated connection and blocks until
// the connection closes. Cleanup always runs before Serve returns, even while
// an event is still being handled.
func (g *Gateway) Serve(ctx context.Context, conn Conn, identity models.Identity) {
	s := &session{
		gateway:  g,
		identity: identity,
		client:   newClient(uuid.NewString(), conn, g.opts),
		inbox:    make(chan []byte, inboxSize),
	}
	s.run(ctx)
}

type session struct {
	gateway  *Gateway
	identity models.Identity
	client   *Client
	logger   *slog.Logger
	inbox    chan []byte

	mu     sync.Mutex
	joined string
	closed bool
}

func (s *session) run(ctx context.Context) {
	logger := logging.FromContext(ctx).With(
		slog.String("conn_id", s.client.id),
		slog.String("username", s.identity.Username),
	)
	ctx, cancel := context.WithCancel(logging.WithLogger(logging.WithConnID(ctx, s.client.id), logger))
	defer cancel()
	s.logger = logger

	if err := s.gateway.hub.Register(s.client); err != nil {
		logger.Warn("rejecting websocket session", slog.Any("error", err))
		_ = s.client.conn.Close()
		return
	}
	s.gateway.metrics.ConnectionOpened()
	logger.Info("websocket session opened")

	go s.client.writePump()

	s.gateway.presence.Welcome(func(snapshot map[string]string) {
		if payload, err := encodeEvent(EventOnlineStatus, snapshot); err == nil {
			s.gateway.hub.Send(s.client, payload)
		}
	})

	go s.work(ctx)

	err := s.client.readPump(s.receive)
	close(s.inbox)
	cancel()
	s.cleanup()

	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !s.client.stopped() {
		logger.Warn("websocket read failed", slog.Any("error", err))
	}
}

// receive runs on the read goroutine and never blocks, so pongs keep flowing
// while an earlier event waits on the store.
func (s *session) receive(payload []byte) {
	select {
	case s.inbox <- payload:
	default:
		s.gateway.metrics.Message(metrics.OutcomeMalformed)
		s.logger.Warn("inbound queue full, dropping frame")
	}
}

// work handles inbound frames one at a time in arrival order. Frames still
// queued when the session ends are discarded.
func (s *session) work(ctx context.Context) {
	for payload := range s.inbox {
		if ctx.Err() != nil {
			continue
		}
		s.handle(ctx, payload)
	}
}

func (s *session) cleanup() {
	s.mu.Lock()
	s.closed = true
	joined := s.joined
	s.mu.Unlock()

	s.client.stop()
	s.gateway.hub.Unregister(s.client)
	if joined != "" {
		s.gateway.presence.RemoveConn(joined, s.client.id)
	}
	s.gateway.metrics.ConnectionClosed()
	s.logger.Info("websocket session closed")
}

func (s *session) joinedAs() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *session) handle(ctx context.Context, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
		s.gateway.metrics.Message(metrics.OutcomeMalformed)
		s.logger.Warn("dropping malformed frame", slog.Any("error", err))
		return
	}

	switch env.Event {
	case EventJoin:
		s.join(env.Data)
	case EventPrivateMessage:
		s.sendPrivate(ctx, env.Data)
	default:
		s.logger.Debug("ignoring unknown event", slog.String("event", env.Event))
	}
}

func (s *session) join(data json.RawMessage) {
	var username string
	if err := json.Unmarshal(data, &username); err != nil || username == "" {
		s.logger.Warn("dropping malformed join", slog.Any("error", err))
		return
	}
	if username != s.identity.Username {
		s.logger.Warn("join name does not match identity", slog.String("requested", username))
		s.sendError("You can only join as yourself")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.joined == username {
		return
	}

	s.gateway.hub.Join(s.client, username)
	s.joined = username
	s.gateway.presence.Admit(username, s.client.id)
	s.logger.Info("websocket session joined")
}

func (s *session) sendPrivate(ctx context.Context, data json.RawMessage) {
	fromUser := s.joinedAs()
	if fromUser == "" {
		s.gateway.metrics.Message(metrics.OutcomeMalformed)
		s.logger.Warn("dropping private message before join")
		return
	}

	var req SendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.gateway.metrics.Message(metrics.OutcomeMalformed)
		s.logger.Warn("dropping malformed private message", slog.Any("error", err))
		return
	}

	_, err := s.gateway.sender.SendPrivate(ctx, fromUser, req)
	switch {
	case err == nil, errors.Is(err, ErrMissingRecipient):
	case errors.Is(err, ErrNotFriends):
		s.sendError(MessageNotFriends)
	default:
		s.logger.Error("private message aborted", slog.Any("error", err))
	}
}

func (s *session) sendError(message string) {
	payload, err := encodeEvent(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	s.gateway.hub.Send(s.client, payload)
}
