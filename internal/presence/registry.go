// Package presence tracks which users currently hold a joined live connection.
package presence

import (
	"slices"
	"sync"
)

// Broadcaster receives the full presence snapshot after every mutation. It is
// called while the registry lock is held and must not block or call back into
// the registry.
type Broadcaster interface {
	BroadcastPresence(snapshot map[string]string)
}

// BroadcasterFunc adapts a function to the Broadcaster interface.
type BroadcasterFunc func(snapshot map[string]string)

// BroadcastPresence calls f(snapshot).
func (f BroadcasterFunc) BroadcastPresence(snapshot map[string]string) { f(snapshot) }

// Registry tracks, per username, the joined connections in join order. A user
// is online while at least one of their connections is joined.
type Registry struct {
	mu          sync.Mutex
	entries     map[string][]string
	broadcaster Broadcaster
	observe     func(online int)
}

// Option customises a Registry.
type Option func(*Registry)

// WithObserver registers a callback that receives the online count after each
// mutation.
func WithObserver(fn func(online int)) Option {
	return func(r *Registry) {
		r.observe = fn
	}
}

// NewRegistry constructs an empty registry. A nil broadcaster disables
// snapshot fan-out.
func NewRegistry(broadcaster Broadcaster, opts ...Option) *Registry {
	r := &Registry{
		entries:     make(map[string][]string),
		broadcaster: broadcaster,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Admit records connID as the most recent live connection for username.
func (r *Registry) Admit(username, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := slices.DeleteFunc(r.entries[username], func(id string) bool { return id == connID })
	r.entries[username] = append(conns, connID)
	r.publishLocked()
}

// Remove deletes username with all of its connections. Removing an absent
// user is a no-op but still broadcasts.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, username)
	r.publishLocked()
}

// RemoveConn drops connID from username's connections. The user stays online
// while another joined connection remains; RemoveConn reports whether the user
// went offline.
func (r *Registry) RemoveConn(username, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.entries[username]
	if !ok || !slices.Contains(conns, connID) {
		return false
	}
	conns = slices.DeleteFunc(conns, func(id string) bool { return id == connID })
	if len(conns) > 0 {
		r.entries[username] = conns
		return false
	}
	delete(r.entries, username)
	r.publishLocked()
	return true
}

// IsOnline reports whether username has a live entry.
func (r *Registry) IsOnline(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[username]
	return ok
}

// Snapshot returns every online username mapped to itself.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// Welcome hands the current snapshot to fn while holding the registry lock,
// so a snapshot queued by fn can never arrive after a newer broadcast. fn must
// not block or call back into the registry.
func (r *Registry) Welcome(fn func(snapshot map[string]string)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(r.snapshotLocked())
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

func (r *Registry) snapshotLocked() map[string]string {
	out := make(map[string]string, len(r.entries))
	for username := range r.entries {
		out[username] = username
	}
	return out
}

func (r *Registry) publishLocked() {
	if r.observe != nil {
		r.observe(len(r.entries))
	}
	if r.broadcaster != nil {
		r.broadcaster.BroadcastPresence(r.snapshotLocked())
	}
}
