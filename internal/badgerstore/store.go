// Package badgerstore keeps messages, users and follows in an embedded
// badger database.
//
// Key layout:
//
//	msg:{receiver}:{sender}:{created_at nanos, 19 digits}:{id}
//	user:{id}
//	follow:{follower}:{following}
//
// Messages addressed to one receiver share a prefix, so unread counts and
// bulk mark-read are a single prefix scan. A conversation is the merge of
// two receiver/sender prefixes.
package badgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/errs"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type Store struct {
	db *badger.DB

	// serialises read-modify-write of message values
	mu  sync.Mutex
	now func() time.Time
}

// Open opens (or creates) the database at path. An empty path keeps
// everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func checkID(ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.Contains(id, ":") {
			return fmt.Errorf("%w: %w", errs.ErrInvalidInput, domain.ErrInvalidUserID)
		}
	}
	return nil
}

func inboxPrefix(receiverID string) []byte {
	return []byte("msg:" + receiverID + ":")
}

func pairPrefix(receiverID, senderID string) []byte {
	return []byte("msg:" + receiverID + ":" + senderID + ":")
}

func messageKey(m domain.Message) []byte {
	return fmt.Appendf(nil, "msg:%s:%s:%019d:%s", m.ReceiverID, m.SenderID, m.CreatedAt.UnixNano(), m.ID)
}

func (s *Store) Append(_ context.Context, senderID, receiverID, text string) (*domain.Message, error) {
	if err := checkID(senderID, receiverID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	val, err := encodeMessage(m)
	if err != nil {
		return nil, err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m), val)
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) Conversation(_ context.Context, userID, peerID string) ([]domain.Message, error) {
	if err := checkID(userID, peerID); err != nil {
		return nil, err
	}

	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefixes := [][]byte{pairPrefix(userID, peerID)}
		if userID != peerID {
			prefixes = append(prefixes, pairPrefix(peerID, userID))
		}
		for _, p := range prefixes {
			if err := scan(txn, p, func(_ []byte, m domain.Message) error {
				out = append(out, m)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b domain.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, receiverID string) (int64, error) {
	if err := checkID(receiverID); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type pending struct {
		key []byte
		val []byte
	}
	var updates []pending
	now := s.now().UTC()

	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, inboxPrefix(receiverID), func(key []byte, m domain.Message) error {
			if m.Read {
				return nil
			}
			m.Read = true
			m.UpdatedAt = now
			val, err := encodeMessage(m)
			if err != nil {
				return err
			}
			updates = append(updates, pending{key: key, val: val})
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, u := range updates {
		if err := wb.Set(u.key, u.val); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(updates)), nil
}

func (s *Store) UnreadCountsBySender(_ context.Context, receiverID string) (map[string]int64, error) {
	if err := checkID(receiverID); err != nil {
		return nil, err
	}

	out := make(map[string]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		return scan(txn, inboxPrefix(receiverID), func(_ []byte, m domain.Message) error {
			if !m.Read {
				out[m.SenderID]++
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan decodes every message under prefix, in key order.
func scan(txn *badger.Txn, prefix []byte, fn func(key []byte, m domain.Message) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		var m domain.Message
		err := item.Value(func(val []byte) error {
			var err error
			m, err = decodeMessage(val)
			return err
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		if err := fn(key, m); err != nil {
			return err
		}
	}
	return nil
}

func userKey(id string) []byte { return []byte("user:" + id) }

func followKey(follower, following string) []byte {
	return []byte("follow:" + follower + ":" + following)
}

func (s *Store) AddUser(_ context.Context, u domain.User) error {
	if err := checkID(u.ID); err != nil {
		return err
	}
	val, err := encodeUser(u)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(u.ID), val)
	})
}

func (s *Store) Lookup(_ context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			u, err = decodeUser(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListExcept(_ context.Context, userID string) ([]domain.User, error) {
	var out []domain.User
	prefix := []byte("user:")
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if bytes.Equal(it.Item().Key(), userKey(userID)) {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				u, err := decodeUser(val)
				if err != nil {
					return err
				}
				out = append(out, u)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) Follow(_ context.Context, followerID, followingID string) error {
	if err := checkID(followerID, followingID); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(followKey(followerID, followingID), nil)
	})
}

func (s *Store) FollowingIDs(_ context.Context, followerID string) ([]string, error) {
	var out []string
	prefix := []byte("follow:" + followerID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out = append(out, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return out, err
}
