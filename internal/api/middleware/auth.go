package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ckr-labs/roofkb/internal/api"
)

type contextKey string

const ActorKey contextKey = "actor"

// AdminTokenAuth guards routes behind the configured bearer token. The actor
// name from the optional X-Actor header is stored in context for audit
// trails on writes.
func AdminTokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			presented := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			actor := r.Header.Get("X-Actor")
			if actor == "" {
				actor = "admin"
			}
			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor returns the authenticated actor name from context.
func GetActor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	return actor
}
