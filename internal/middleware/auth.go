package middleware

import (
	"context"
	"net/http"

	"github.com/roach88/billbook/internal/auth"
	"github.com/roach88/billbook/internal/http/respond"
)

type ctxKey struct{}

// Identity is the caller of a request.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// WithIdentity returns ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller stored by Auth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// UserID returns the caller's user id or "".
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}

// Auth resolves the caller from a bearer token. With a nil token manager
// every request runs as defaultUser. Paths in public pass through untouched.
func Auth(tokens *auth.TokenManager, defaultUser string, public []string, next http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if open[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		if tokens == nil {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: defaultUser, Role: "owner"})))
			return
		}

		raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		id := Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
