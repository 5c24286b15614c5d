package handlers

import (
	"net/http"
	"time"

	"github.com/palchat/backend/internal/logging"
)

// MessageHandler serves conversation history between friends.
type MessageHandler struct {
	Friends  FriendStore
	Messages MessageStore
}

// History handles GET /api/v1/messages/{user1}/{user2}. The caller must be one
// of the two users and the pair must be accepted friends.
func (h MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	user1, user2 := r.PathValue("user1"), r.PathValue("user2")
	var peer string
	switch identity.Username {
	case user1:
		peer = user2
	case user2:
		peer = user1
	default:
		respondError(ctx, w, http.StatusForbidden, "You can only view your own conversations")
		return
	}

	friends, err := h.Friends.IsAccepted(ctx, identity.Username, peer)
	if err != nil {
		logger.Error("friendship lookup failed", "error", err, "peer", peer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if !friends {
		respondError(ctx, w, http.StatusForbidden, "You can only view messages with friends")
		return
	}

	messages, err := h.Messages.ListBetween(ctx, identity.Username, peer)
	if err != nil {
		logger.Error("load message history failed", "error", err, "peer", peer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse{
			ID:        m.ID,
			FromUser:  m.FromUser,
			ToUser:    m.ToUser,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

type messageResponse struct {
	ID        int64     `json:"id"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
