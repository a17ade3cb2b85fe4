// Package presence tracks which user currently owns which live connection.
package presence

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry maps a user id to its single active connection id. A later
// Register for the same user replaces the earlier mapping. State is
// process-local and starts empty on every boot.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID and returns the connection id it replaced,
// or "" if the user was offline.
func (r *Registry) Register(userID, connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.byConn[connID]; ok && owner != userID {
		delete(r.byUser, owner)
	}

	prev := r.byUser[userID]
	if prev != "" && prev != connID {
		delete(r.byConn, prev)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID

	return prev
}

// Unregister drops the mapping held by connID. It is a no-op when connID is
// unknown, including a stale connection whose user has already reconnected.
func (r *Registry) Unregister(connID string) (userID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}

	return userID, true
}

func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	return connID, ok
}

// OnlineUserIDs returns a sorted snapshot of connected user ids.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	ids := lo.Keys(r.byUser)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}
