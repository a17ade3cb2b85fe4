package ws

import (
	"errors"
	"sync"
)

var ErrConnNotFound = errors.New("connection not found")

type Conn interface {
	ID() string
	UserID() string
	Send(evt Event) error
	Close() error
}

// Hub is the set of Open connections, keyed by connection id.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.conns[c.ID()]; ok && cur == c {
		delete(h.conns, c.ID())
	}
}

func (h *Hub) Get(connID string) (Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	return c, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// Send writes evt to one connection.
func (h *Hub) Send(connID string, evt Event) error {
	c, ok := h.Get(connID)
	if !ok {
		return ErrConnNotFound
	}
	return c.Send(evt)
}

// Broadcast writes evt to every open connection and returns how many writes
// failed. Writes are best-effort.
func (h *Hub) Broadcast(evt Event) (failed int) {
	for _, c := range h.snapshot() {
		if err := c.Send(evt); err != nil {
			failed++
		}
	}
	return failed
}

// CloseAll closes every open connection; their read loops then run the
// normal Open->Closed transition.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		_ = c.Close()
	}
}

// snapshot copies the set so slow writers never hold the lock.
func (h *Hub) snapshot() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	return out
}
