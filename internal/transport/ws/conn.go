package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// connState is the lifecycle of one socket: Connecting -> Open -> Closed.
type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	default:
		return "closed"
	}
}

type wsConn struct {
	conn         *websocket.Conn
	id           string
	userID       string
	writeTimeout time.Duration

	state     atomic.Int32
	sendMu    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, id, userID string, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         c,
		id:           id,
		userID:       userID,
		writeTimeout: writeTimeout,
		sendMu:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

// transition moves from -> to atomically; false means another goroutine
// already left from.
func (c *wsConn) transition(from, to connState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *wsConn) currentState() connState {
	return connState(c.state.Load())
}

func (c *wsConn) Send(evt Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(evt)
}

func (c *wsConn) ping() error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) UserID() string { return c.userID }
