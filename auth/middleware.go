package auth

import (
	"collab-live/domain"
	"collab-live/errors"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
)

// Middleware rejects requests without a valid bearer token and injects the
// caller identity into the request context.
func Middleware(tokens *TokenManager, unauthorized func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, errors.ErrMissingToken)
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				unauthorized(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, domain.IdentityID(claims.UserID))
			ctx = context.WithValue(ctx, RolesKey, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFrom returns the identity injected by Middleware.
func CallerFrom(ctx context.Context) (domain.IdentityID, bool) {
	id, ok := ctx.Value(UserIDKey).(domain.IdentityID)
	return id, ok && id != ""
}
