package handlers

import (
	"context"

	"github.com/palchat/backend/internal/chat"
	"github.com/palchat/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth and user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
}

// SessionManager issues, refreshes and verifies authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, identity models.Identity) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Verify(token string) (models.Identity, error)
}

// FriendStore captures operations required by the friend handlers.
type FriendStore interface {
	CreateRequest(ctx context.Context, fromUser, toUser string) (models.Friendship, error)
	ListForUser(ctx context.Context, username string) ([]models.Friendship, error)
	Accept(ctx context.Context, requestID int64, recipient string) error
	Reject(ctx context.Context, requestID int64, recipient string) error
	IsAccepted(ctx context.Context, userA, userB string) (bool, error)
}

// MessageStore reads conversation history.
type MessageStore interface {
	ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
}

// PresenceReader reports whether a user holds a live connection.
type PresenceReader interface {
	IsOnline(username string) bool
}

// ExportStore loads export records.
type ExportStore interface {
	Find(ctx context.Context, id string) (models.Export, error)
}

// TranscriptExporter schedules background transcript uploads.
type TranscriptExporter interface {
	Enqueue(ctx context.Context, owner, peer string) (models.Export, error)
}

// ChatGateway runs a live session over an upgraded connection.
type ChatGateway interface {
	Serve(ctx context.Context, conn chat.Conn, identity models.Identity)
}

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}
