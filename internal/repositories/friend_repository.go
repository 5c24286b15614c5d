package repositories

import (
	"context"

	"github.com/palchat/backend/internal/models"
)

// FriendRepository defines data access for friend requests and relationships.
//
// A friendship is stored once per unordered pair of usernames. User1 is the
// requester and only User2 may accept or reject a pending request.
type FriendRepository interface {
	CreateRequest(ctx context.Context, fromUser, toUser string) (models.Friendship, error)
	ListForUser(ctx context.Context, username string) ([]models.Friendship, error)
	Accept(ctx context.Context, requestID int64, recipient string) error
	Reject(ctx context.Context, requestID int64, recipient string) error
	IsAccepted(ctx context.Context, userA, userB string) (bool, error)
}
