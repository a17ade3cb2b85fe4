// Package memstore is a process-local implementation of the message store,
// directory and follow relation. It backs the "memory" store driver and tests.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.RWMutex
	users    []domain.User
	follows  map[string]map[string]struct{} // follower -> following set
	messages []domain.Message

	now func() time.Time
}

func New() *Store {
	return &Store{
		follows: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// SetClock replaces time.Now, for deterministic timestamps in tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }

// AddUser inserts or replaces a directory entry.
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.IndexFunc(s.users, func(x domain.User) bool { return x.ID == u.ID }); i >= 0 {
		s.users[i] = u
		return
	}
	s.users = append(s.users, u)
}

func (s *Store) Follow(followerID, followingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.follows[followerID]
	if !ok {
		set = make(map[string]struct{})
		s.follows[followerID] = set
	}
	set[followingID] = struct{}{}
}

func (s *Store) Lookup(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == userID {
			u := u
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) ListExcept(_ context.Context, userID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) FollowingIDs(_ context.Context, followerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.follows[followerID]))
	for id := range s.follows[followerID] {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) Append(_ context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	m := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.messages = append(s.messages, m)
	return &m, nil
}

// Conversation returns messages in insertion order, which is createdAt order.
func (s *Store) Conversation(_ context.Context, userID, peerID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Message
	for _, m := range s.messages {
		if (m.SenderID == userID && m.ReceiverID == peerID) ||
			(m.SenderID == peerID && m.ReceiverID == userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == receiverID && !m.Read {
			m.Read = true
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) UnreadCountsBySender(_ context.Context, receiverID string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && !m.Read {
			out[m.SenderID]++
		}
	}
	return out, nil
}
