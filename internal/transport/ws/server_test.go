package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/metrics"
	"github.com/cwrk-planet/messaging-service/internal/presence"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type gateway struct {
	srv      *Server
	registry *presence.Registry
	metrics  *metrics.Metrics
	http     *httptest.Server
}

func newGateway(t *testing.T, opts Options) *gateway {
	t.Helper()
	reg := presence.NewRegistry()
	m := metrics.New()
	srv := NewServer(NewHub(), reg, m, opts)
	hs := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		hs.Close()
	})
	return &gateway{srv: srv, registry: reg, metrics: m, http: hs}
}

func (g *gateway) url(params url.Values) string {
	return "ws" + strings.TrimPrefix(g.http.URL, "http") + "/ws?" + params.Encode()
}

func (g *gateway) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(g.url(url.Values{"userId": {userID}}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) rawEvent {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt rawEvent
	require.NoError(t, c.ReadJSON(&evt))
	return evt
}

func readOnline(t *testing.T, c *websocket.Conn) []string {
	t.Helper()
	evt := readEvent(t, c)
	require.Equal(t, domain.EventGetOnlineUsers, evt.Type)
	var ids []string
	require.NoError(t, json.Unmarshal(evt.Payload, &ids))
	return ids
}

func TestGateway_SnapshotBroadcastOnChurn(t *testing.T) {
	g := newGateway(t, Options{})

	alice := g.dial(t, "alice")
	require.Equal(t, []string{"alice"}, readOnline(t, alice))

	bob := g.dial(t, "bob")
	require.Equal(t, []string{"alice", "bob"}, readOnline(t, bob))
	require.Equal(t, []string{"alice", "bob"}, readOnline(t, alice))

	require.NoError(t, bob.Close())
	require.Equal(t, []string{"alice"}, readOnline(t, alice))

	_, ok := g.registry.Lookup("bob")
	require.False(t, ok)
}

func TestGateway_HandshakeWithoutIdentityIsDropped(t *testing.T) {
	g := newGateway(t, Options{})

	_, resp, err := websocket.DefaultDialer.Dial(g.url(url.Values{}), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Zero(t, g.registry.Len())
	require.Equal(t, 1.0, testutil.ToFloat64(g.metrics.Handshakes.WithLabelValues("anonymous")))
	require.Zero(t, testutil.ToFloat64(g.metrics.Pushes.WithLabelValues(domain.EventGetOnlineUsers, metrics.OutcomeDelivered)))
}

func TestGateway_ClientPullsSnapshot(t *testing.T) {
	g := newGateway(t, Options{})

	alice := g.dial(t, "alice")
	readOnline(t, alice)

	require.NoError(t, alice.WriteJSON(Event{Type: domain.EventGetOnlineUsers}))
	require.Equal(t, []string{"alice"}, readOnline(t, alice))
	require.Equal(t, []string{"alice"}, g.srv.OnlineUserIDs())
}

func TestGateway_IgnoresUnknownAndMalformedFrames(t *testing.T) {
	g := newGateway(t, Options{})

	alice := g.dial(t, "alice")
	readOnline(t, alice)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, alice.WriteJSON(Event{Type: "typing"}))
	require.NoError(t, alice.WriteJSON(Event{Type: domain.EventGetOnlineUsers}))

	require.Equal(t, []string{"alice"}, readOnline(t, alice))
}

func TestGateway_ReconnectKeepsSingleRecord(t *testing.T) {
	g := newGateway(t, Options{})

	first := g.dial(t, "alice")
	require.Equal(t, []string{"alice"}, readOnline(t, first))

	second := g.dial(t, "alice")
	require.Equal(t, []string{"alice"}, readOnline(t, second))
	require.Equal(t, []string{"alice"}, readOnline(t, first))
	require.Equal(t, 1, g.registry.Len())

	connID, ok := g.registry.Lookup("alice")
	require.True(t, ok)
	require.NoError(t, g.srv.Push(connID, domain.EventMessageRead, "alice"))

	evt := readEvent(t, second)
	require.Equal(t, domain.EventMessageRead, evt.Type)
	require.JSONEq(t, `"alice"`, string(evt.Payload))

	// the stale socket going away must not log the user out
	require.NoError(t, first.Close())
	require.Equal(t, []string{"alice"}, readOnline(t, second))
	got, ok := g.registry.Lookup("alice")
	require.True(t, ok)
	require.Equal(t, connID, got)
}

func TestGateway_PushToUnknownConnection(t *testing.T) {
	g := newGateway(t, Options{})

	err := g.srv.Push("missing", domain.EventNewMessage, nil)
	require.ErrorIs(t, err, ErrConnNotFound)
}

type stubVerifier struct{ want string }

func (v stubVerifier) VerifySubject(token, userID string) error {
	if token != v.want+"-token" || userID != v.want {
		return errors.New("subject mismatch")
	}
	return nil
}

func TestGateway_VerifyIdentity(t *testing.T) {
	g := newGateway(t, Options{VerifyIdentity: true, Verifier: stubVerifier{want: "alice"}})

	_, resp, err := websocket.DefaultDialer.Dial(g.url(url.Values{
		"userId":      {"alice"},
		"accessToken": {"mallory-token"},
	}), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, g.registry.Len())

	c, _, err := websocket.DefaultDialer.Dial(g.url(url.Values{
		"userId":      {"alice"},
		"accessToken": {"alice-token"},
	}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.Equal(t, []string{"alice"}, readOnline(t, c))
}

func TestGateway_ShutdownClosesEverySocket(t *testing.T) {
	g := newGateway(t, Options{})

	alice := g.dial(t, "alice")
	readOnline(t, alice)
	bob := g.dial(t, "bob")
	readOnline(t, bob)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.srv.Shutdown(ctx))

	require.Zero(t, g.registry.Len())
	// leftover snapshot frames may still be buffered; the socket must end with
	// a close, not a read timeout
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			var netErr net.Error
			require.False(t, errors.As(err, &netErr) && netErr.Timeout(), "socket was not closed: %v", err)
			break
		}
	}
}

func TestHub_BroadcastCountsFailures(t *testing.T) {
	h := NewHub()
	h.Add(&fakeConn{id: "c1"})
	h.Add(&fakeConn{id: "c2", err: errors.New("broken pipe")})

	require.Equal(t, 1, h.Broadcast(Event{Type: domain.EventGetOnlineUsers}))
	require.Equal(t, 2, h.Len())

	h.Remove(&fakeConn{id: "c1"}) // different instance, same id
	require.Equal(t, 2, h.Len())
}

type fakeConn struct {
	id   string
	err  error
	sent []Event
}

func (f *fakeConn) ID() string     { return f.id }
func (f *fakeConn) UserID() string { return "" }
func (f *fakeConn) Close() error   { return nil }
func (f *fakeConn) Send(evt Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, evt)
	return nil
}

func TestConnState_TransitionsOnlyForward(t *testing.T) {
	c := newWsConn(nil, "c1", "alice", time.Second)
	require.Equal(t, stateConnecting, c.currentState())

	require.False(t, c.transition(stateOpen, stateClosed))
	require.True(t, c.transition(stateConnecting, stateOpen))
	require.False(t, c.transition(stateConnecting, stateOpen))
	require.True(t, c.transition(stateOpen, stateClosed))
	require.False(t, c.transition(stateOpen, stateClosed))
	require.Equal(t, "closed", c.currentState().String())
}
