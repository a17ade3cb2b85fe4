package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/internal/memstore"
	"github.com/cwrk-planet/messaging-service/pkg/errs"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_ParseAndVerifySubject(t *testing.T) {
	v := NewJWTVerifier("secret", "messaging", time.Second)

	token, err := v.Sign("alice", "Alice", time.Minute)
	require.NoError(t, err)

	claims, err := v.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.SubjectID())
	require.Equal(t, "Alice", claims.Name)

	require.NoError(t, v.VerifySubject(token, "alice"))
	require.ErrorIs(t, v.VerifySubject(token, "bob"), ErrSubjectMismatch)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("secret", "messaging", 0)

	_, err := v.Parse("")
	require.ErrorIs(t, err, ErrTokenMissing)

	other := NewJWTVerifier("other-secret", "messaging", 0)
	forged, err := other.Sign("alice", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Parse(forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTVerifier("secret", "someone-else", 0)
	tok, err := wrongIssuer.Sign("alice", "", time.Minute)
	require.NoError(t, err)
	_, err = v.Parse(tok)
	require.ErrorIs(t, err, ErrInvalidIssuer)

	v.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, err := v.Sign("alice", "", time.Minute)
	require.NoError(t, err)
	v.now = time.Now
	_, err = v.Parse(stale)
	require.ErrorIs(t, err, ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{UserID: "alice"})
	s, err := none.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Parse(s)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_FallsBackToSub(t *testing.T) {
	v := NewJWTVerifier("secret", "", 0)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		StandardClaims: jwt.StandardClaims{Subject: "bob", ExpiresAt: time.Now().Add(time.Minute).Unix()},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := v.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, "bob", claims.SubjectID())
}

type failingLookup struct{}

func (failingLookup) Lookup(context.Context, string) (*domain.User, error) {
	return nil, errors.New("connection refused")
}

func TestGuard_CurrentUser(t *testing.T) {
	v := NewJWTVerifier("secret", "", 0)
	users := memstore.New()
	users.AddUser(domain.User{ID: "alice", Name: "Alice"})
	g := NewGuard(v, users, "")

	alice, err := v.Sign("alice", "Alice", time.Minute)
	require.NoError(t, err)
	ghost, err := v.Sign("ghost", "", time.Minute)
	require.NoError(t, err)

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: alice})
		u, err := g.CurrentUser(r)
		require.NoError(t, err)
		require.Equal(t, "alice", u.ID)
	})

	t.Run("bearer", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+alice)
		u, err := g.CurrentUser(r)
		require.NoError(t, err)
		require.Equal(t, "Alice", u.Name)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := g.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
		require.ErrorIs(t, err, errs.ErrUnauthorized)
		require.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("unknown user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+ghost)
		_, err := g.CurrentUser(r)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}

func TestGuard_DirectoryOutage(t *testing.T) {
	v := NewJWTVerifier("secret", "", 0)
	g := NewGuard(v, failingLookup{}, "")
	tok, err := v.Sign("alice", "", time.Minute)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	_, err = g.CurrentUser(r)
	require.ErrorIs(t, err, errs.ErrUnavailable)
}
