package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/errs"
)

const DefaultCookieName = "accessToken"

type UserLookup interface {
	Lookup(ctx context.Context, userID string) (*domain.User, error)
}

// Guard resolves the caller of a REST request to a directory user.
type Guard struct {
	verifier   *JWTVerifier
	users      UserLookup
	cookieName string
}

func NewGuard(verifier *JWTVerifier, users UserLookup, cookieName string) *Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Guard{verifier: verifier, users: users, cookieName: cookieName}
}

// TokenFromRequest reads the access token cookie, then the bearer header.
func (g *Guard) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// CurrentUser fails with errs.ErrUnauthorized for any token or identity
// problem; directory outages surface as errs.ErrUnavailable.
func (g *Guard) CurrentUser(r *http.Request) (*domain.User, error) {
	claims, err := g.verifier.Parse(g.TokenFromRequest(r))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}

	user, err := g.users.Lookup(r.Context(), claims.SubjectID())
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("%w: %w", errs.ErrUnauthorized, ErrInvalidToken)
	case err != nil:
		return nil, fmt.Errorf("%w: lookup user: %w", errs.ErrUnavailable, err)
	}
	return user, nil
}
