package repositories

import "errors"

// Sentinel errors returned by every repository in place of driver errors.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
	// ErrSelfFriendship is returned when both sides of a friend request are
	// the same user.
	ErrSelfFriendship = errors.New("cannot befriend yourself")
)
