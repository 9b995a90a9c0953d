package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type Actor struct {
	ID string `json:"id"`
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// auth checks the shared bearer token and attaches the caller identity
// from the X-Actor-Id header. An empty configured token disables the
// check for local development.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AuthToken != "" {
			token := parseBearer(r)
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.AuthToken)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if id := strings.TrimSpace(r.Header.Get("X-Actor-Id")); id != "" {
			r = r.WithContext(WithActor(r.Context(), Actor{ID: id}))
		}
		next.ServeHTTP(w, r)
	})
}

func parseBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
