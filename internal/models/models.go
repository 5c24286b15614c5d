package models

import "time"

// User represents an account within palchat.
type User struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	CreatedAt time.Time
}

// Identity is the verified, immutable view of a user that backs a request or a
// live connection.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Identity returns the public identity of the user.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// Friendship is a relationship between two usernames. User1 is the requester
// and User2 the recipient; lookups treat the pair as unordered.
type Friendship struct {
	ID        int64
	User1     string
	User2     string
	Status    string
	CreatedAt time.Time
}

// Other returns the party of the friendship that is not username.
func (f Friendship) Other(username string) string {
	if f.User1 == username {
		return f.User2
	}
	return f.User1
}

// Message is an append-only private message between two friends.
type Message struct {
	ID        int64
	FromUser  string
	ToUser    string
	Content   string
	Timestamp time.Time
}

const (
	ExportStatusPending = "pending"
	ExportStatusReady   = "ready"
	ExportStatusFailed  = "failed"
)

// Export tracks a conversation transcript uploaded to object storage.
type Export struct {
	ID        string
	Owner     string
	Peer      string
	Status    string
	Location  string
	Size      int64
	CreatedAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
