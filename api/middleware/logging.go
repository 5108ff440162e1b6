package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/reservation-engine/pkg/logger"
)

// Logging emits one start and one completion line per request. The
// completion line carries the matched route pattern so dashboards can group
// by endpoint instead of by raw path.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logg == nil {
				next.ServeHTTP(w, r)
				return
			}

			fields := map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			if actor := ActorIDFromContext(r.Context()); actor != "" {
				fields["actor_id"] = actor
			}
			ctx := logg.WithFields(r.Context(), fields)

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			logg.Debug(ctx, "request.start")

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			done := map[string]any{
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					done["route"] = pattern
				}
			}
			logg.Info(logg.WithFields(ctx, done), "request.complete")
		})
	}
}
