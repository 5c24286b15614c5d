package handlers

import (
	"net/http"

	"github.com/palchat/backend/internal/logging"
)

// UserHandler lists registered users with their live presence.
type UserHandler struct {
	Users    UserStore
	Presence PresenceReader
}

// List handles GET /api/v1/users.
func (h UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if _, ok := currentIdentity(w, r); !ok {
		return
	}

	users, err := h.Users.List(ctx)
	if err != nil {
		logging.FromContext(ctx).Error("list users failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load users")
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Online:   h.Presence != nil && h.Presence.IsOnline(u.Username),
		})
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Online   bool   `json:"online"`
}
