package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errNoVerifier = errors.New("identity verifier not configured")

// Presence is the part of the presence registry the gateway mutates.
type Presence interface {
	Register(userID, connID string) string
	Unregister(connID string) (string, bool)
	OnlineUserIDs() []string
	Len() int
}

// IdentityVerifier checks that an access token belongs to userID.
type IdentityVerifier interface {
	VerifySubject(token, userID string) error
}

type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64

	// VerifyIdentity requires an accessToken query parameter whose subject
	// matches userId. Off by default: clients send userId unauthenticated.
	VerifyIdentity bool
	Verifier       IdentityVerifier

	// AllowedOrigins empty means any origin.
	AllowedOrigins []string
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	presence Presence
	metrics  *metrics.Metrics
	opts     Options
}

func NewServer(hub *Hub, presence Presence, m *metrics.Metrics, opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 1 << 16
	}

	s := &Server{
		hub:      hub,
		presence: presence,
		metrics:  m,
		opts:     opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// WS endpoint: GET /ws?userId=...[&accessToken=...]
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("userId"))
	if userID == "" {
		// anonymous sockets never reach Open
		s.metrics.Handshake("anonymous")
		slog.Debug("ws handshake without identity", "remote", r.RemoteAddr)
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if s.opts.VerifyIdentity {
		if err := s.verify(q.Get("accessToken"), userID); err != nil {
			s.metrics.Handshake("unverified")
			slog.Debug("ws identity rejected", "user", userID, "err", err)
			http.Error(w, "identity not verified", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the request
		s.metrics.Handshake("failed")
		slog.Warn("ws upgrade failed", "user", userID, "err", err)
		return
	}
	s.metrics.Handshake("accepted")

	c := newWsConn(conn, uuid.NewString(), userID, s.opts.WriteTimeout)
	s.open(c)

	go s.pingLoop(c)
	s.readLoop(c)

	s.close(c)
}

func (s *Server) verify(token, userID string) error {
	if s.opts.Verifier == nil {
		return errNoVerifier
	}
	return s.opts.Verifier.VerifySubject(strings.TrimSpace(token), userID)
}

// open runs Connecting -> Open: register, then broadcast the full snapshot to
// every open socket, this one included.
func (s *Server) open(c *wsConn) {
	if !c.transition(stateConnecting, stateOpen) {
		return
	}
	s.hub.Add(c)
	if prev := s.presence.Register(c.userID, c.id); prev != "" {
		slog.Info("ws presence replaced", "user", c.userID, "conn", c.id, "prev_conn", prev)
	} else {
		slog.Info("ws connected", "user", c.userID, "conn", c.id)
	}
	s.broadcastOnline()
}

// close runs Open -> Closed once, whichever side ended the socket.
func (s *Server) close(c *wsConn) {
	if !c.transition(stateOpen, stateClosed) {
		slog.Debug("ws close skipped", "conn", c.id, "state", c.currentState())
		_ = c.Close()
		return
	}
	s.presence.Unregister(c.id)
	s.hub.Remove(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", c.userID, "conn", c.id, "err", err)
	}
	slog.Info("ws disconnected", "user", c.userID, "conn", c.id)
	s.broadcastOnline()
}

func (s *Server) broadcastOnline() {
	ids := s.presence.OnlineUserIDs()
	s.metrics.SetPresence(len(ids), s.hub.Len())

	evt := Event{Type: domain.EventGetOnlineUsers, Payload: ids}
	if failed := s.hub.Broadcast(evt); failed > 0 {
		slog.Debug("ws snapshot broadcast partially failed", "failed", failed)
		s.metrics.Push(domain.EventGetOnlineUsers, metrics.OutcomeFailed)
		return
	}
	s.metrics.Push(domain.EventGetOnlineUsers, metrics.OutcomeDelivered)
}

// OnlineUserIDs is the pull form of the snapshot.
func (s *Server) OnlineUserIDs() []string {
	return s.presence.OnlineUserIDs()
}

// Push delivers one event to one connection. An unknown connection id yields
// ErrConnNotFound, which callers treat as offline.
func (s *Server) Push(connID, event string, payload any) error {
	return s.hub.Send(connID, Event{Type: event, Payload: payload})
}

// Shutdown closes all sockets and waits until their Closed transitions ran.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for s.hub.Len() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "user", c.userID, "conn", c.id, "err", err)
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		switch evt.Type {
		case domain.EventGetOnlineUsers:
			err := c.Send(Event{Type: domain.EventGetOnlineUsers, Payload: s.presence.OnlineUserIDs()})
			if err != nil {
				s.metrics.Push(domain.EventGetOnlineUsers, metrics.OutcomeFailed)
				continue
			}
			s.metrics.Push(domain.EventGetOnlineUsers, metrics.OutcomeDelivered)
		default:
			// ignore
		}
	}
}

func (s *Server) pingLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, origin)
}
