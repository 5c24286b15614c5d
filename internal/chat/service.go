package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/palchat/backend/internal/logging"
	"github.com/palchat/backend/internal/metrics"
	"github.com/palchat/backend/internal/models"
)

var (
	// ErrMissingRecipient is returned for a private message without a recipient.
	ErrMissingRecipient = errors.New("recipient must be provided")
	// ErrNotFriends is returned when sender and recipient are not accepted friends.
	ErrNotFriends = errors.New("sender and recipient are not friends")
)

// FriendChecker answers whether two users hold an accepted friendship.
type FriendChecker interface {
	IsAccepted(ctx context.Context, a, b string) (bool, error)
}

// MessageStore persists private messages.
type MessageStore interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
}

// Router delivers an encoded event to every client joined under key.
type Router interface {
	DeliverTo(key string, payload []byte) int
}

// Service implements the private message send protocol.
type Service struct {
	friends  FriendChecker
	messages MessageStore
	router   Router
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(friends FriendChecker, messages MessageStore, router Router, m *metrics.Metrics) *Service {
	return &Service{
		friends:  friends,
		messages: messages,
		router:   router,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SendPrivate authorizes, persists and routes one message from fromUser. It
// returns the number of live sessions the message was queued for.
func (s *Service) SendPrivate(ctx context.Context, fromUser string, req SendRequest) (int, error) {
	ctx, span := logging.StartSpan(ctx, "chat.send_private")
	defer span.End()
	logger := logging.FromContext(ctx)

	toUser := strings.TrimSpace(req.ToUser)
	if toUser == "" {
		s.metrics.Message(metrics.OutcomeMalformed)
		logger.Warn("private message without recipient")
		return 0, ErrMissingRecipient
	}

	ok, err := s.friends.IsAccepted(ctx, fromUser, toUser)
	if err != nil {
		s.metrics.Message(metrics.OutcomeStoreError)
		err = fmt.Errorf("check friendship: %w", err)
		span.Fail(err)
		return 0, err
	}
	if !ok {
		s.metrics.Message(metrics.OutcomeUnauthorized)
		logger.Info("private message to non-friend", slog.String("to_user", toUser))
		return 0, ErrNotFriends
	}

	msg, err := s.messages.Create(ctx, models.Message{
		FromUser:  fromUser,
		ToUser:    toUser,
		Content:   req.Content,
		Timestamp: s.now(),
	})
	if err != nil {
		s.metrics.Message(metrics.OutcomeStoreError)
		err = fmt.Errorf("store message: %w", err)
		span.Fail(err)
		return 0, err
	}

	payload, err := encodeEvent(EventPrivateMessage, PrivateMessage{
		Content:   msg.Content,
		FromUser:  msg.FromUser,
		ToUser:    msg.ToUser,
		Timestamp: msg.Timestamp,
	})
	if err != nil {
		err = fmt.Errorf("encode message: %w", err)
		span.Fail(err)
		return 0, err
	}

	delivered := s.router.DeliverTo(toUser, payload)
	if delivered == 0 {
		s.metrics.Message(metrics.OutcomeStoredOffline)
	} else {
		s.metrics.Message(metrics.OutcomeDelivered)
	}
	logger.Debug("private message routed",
		slog.Int64("message_id", msg.ID),
		slog.String("to_user", toUser),
		slog.Int("sessions", delivered),
	)
	return delivered, nil
}
