package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/palchat/backend/internal/logging"
	"github.com/palchat/backend/internal/models"
	"github.com/palchat/backend/internal/repositories"
)

const (
	msgFriendRequestExists   = "Friend request already exists"
	msgFriendRequestNotFound = "Friend request not found or not authorized"
)

// FriendHandler provides friend request and listing endpoints.
type FriendHandler struct {
	Friends FriendStore
}

// List handles GET /api/v1/friends requests.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	friendships, err := h.Friends.ListForUser(ctx, identity.Username)
	if err != nil {
		logging.FromContext(ctx).Error("list friendships failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load friends")
		return
	}

	out := make([]friendshipResponse, 0, len(friendships))
	for _, f := range friendships {
		out = append(out, newFriendshipResponse(f, identity.Username))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Request handles POST /api/v1/friends/request.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.ToUser = strings.TrimSpace(req.ToUser)
	switch {
	case req.ToUser == "":
		respondError(ctx, w, http.StatusBadRequest, "toUser is required")
		return
	case req.ToUser == identity.Username:
		respondError(ctx, w, http.StatusBadRequest, "cannot send a friend request to yourself")
		return
	}

	friendship, err := h.Friends.CreateRequest(ctx, identity.Username, req.ToUser)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, http.StatusConflict, msgFriendRequestExists)
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user not found")
		case errors.Is(err, repositories.ErrSelfFriendship):
			respondError(ctx, w, http.StatusBadRequest, "cannot send a friend request to yourself")
		default:
			logger.Error("create friend request failed", "error", err, "toUser", req.ToUser)
			respondError(ctx, w, http.StatusInternalServerError, "failed to send friend request")
		}
		return
	}

	logger.Info("friend request sent", "requestId", friendship.ID, "toUser", req.ToUser)
	respondJSON(ctx, w, http.StatusCreated, newFriendshipResponse(friendship, identity.Username))
}

// Respond handles PUT /api/v1/friends/{requestID}. Only the recipient of a
// pending request may accept or reject it.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	requestID, err := strconv.ParseInt(r.PathValue("requestID"), 10, 64)
	if err != nil || requestID <= 0 {
		respondError(ctx, w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend response payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	var status string
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "accept":
		err = h.Friends.Accept(ctx, requestID, identity.Username)
		status = models.FriendStatusAccepted
	case "reject":
		err = h.Friends.Reject(ctx, requestID, identity.Username)
		status = "rejected"
	default:
		respondError(ctx, w, http.StatusBadRequest, "action must be accept or reject")
		return
	}

	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, msgFriendRequestNotFound)
			return
		}
		logger.Error("respond to friend request failed", "error", err, "requestId", requestID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update friend request")
		return
	}

	logger.Info("friend request answered", "requestId", requestID, "status", status)
	respondJSON(ctx, w, http.StatusOK, map[string]any{"id": requestID, "status": status})
}

type friendRequest struct {
	ToUser string `json:"toUser"`
}

type respondRequest struct {
	Action string `json:"action"`
}

type friendshipResponse struct {
	ID         int64     `json:"id"`
	User1      string    `json:"user1"`
	User2      string    `json:"user2"`
	Status     string    `json:"status"`
	FriendName string    `json:"friendName"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newFriendshipResponse(f models.Friendship, viewer string) friendshipResponse {
	return friendshipResponse{
		ID:         f.ID,
		User1:      f.User1,
		User2:      f.User2,
		Status:     f.Status,
		FriendName: f.Other(viewer),
		CreatedAt:  f.CreatedAt,
	}
}
