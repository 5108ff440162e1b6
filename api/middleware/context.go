package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ctxActorID contextKey = "actor_id"

// ActorHeader names the caller identity supplied by the upstream gateway.
const ActorHeader = "X-Actor-Id"

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

// WithActorID injects the actor identifier into the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActorID, actorID)
}

// Actor copies the gateway-provided actor header into the request context.
// Requests without the header pass through; handlers that need an actor
// reject them individually.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
				r = r.WithContext(WithActorID(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}
