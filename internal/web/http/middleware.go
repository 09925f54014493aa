package http

import (
	"net/http"

	"github.com/aussiebroadwan/lodge/internal/web/service"
	"github.com/aussiebroadwan/lodge/pkg/httpx"
	"github.com/aussiebroadwan/lodge/pkg/slogx"
)

// SessionMiddleware resolves the session cookie once per request. The user
// id lands in the request context and, when present, on the request logger.
func SessionMiddleware(flow *service.Flow) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, state := flow.Attach(r)
			if state.IsAuthenticated() {
				ctx := httpx.ContextWithUserID(r.Context(), state.UserID)
				ctx = slogx.With(ctx, "user_id", state.UserID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
