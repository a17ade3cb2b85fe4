package httpmw

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/messaging-service/internal/domain"
	"github.com/cwrk-planet/messaging-service/pkg/httputil"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

type Authenticator interface {
	CurrentUser(r *http.Request) (*domain.User, error)
}

// Auth rejects the request before any handler runs unless the caller
// resolves to a directory user.
func Auth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.CurrentUser(r)
			if err != nil {
				slog.DebugContext(r.Context(), "auth rejected", slog.Any("err", err))
				httputil.Error(r.Context(), w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserFromCtx(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(*domain.User)
	return u, ok && u != nil
}

// WithUser is the test seam for handlers mounted without Auth.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}
