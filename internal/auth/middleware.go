package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

// Middleware wires token verification for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require verifies the bearer token and stores the actor on the context.
func (m Middleware) Require(next http.Handler) http.Handler {
	return m.guard(false, next)
}

// RequireAdmin additionally checks the admin flag. Mutating endpoints
// (catalog edits, applied resolutions) sit behind this.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.guard(true, next)
}

func (m Middleware) guard(admin bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || presented == "" {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		token, err := m.Service.Verify(r.Context(), presented)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token rejected", slog.Any("error", err))
			}
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if admin && !token.Admin {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), token.Name)))
	})
}
